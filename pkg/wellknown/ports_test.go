package wellknown

import (
	"strings"
	"testing"

	"firewall-simulator/internal/model"
)

func TestGetServiceReturnsDNSAliases(t *testing.T) {
	entries, ok := GetService("dns")
	if !ok {
		t.Fatalf("expected dns to be present in well-known service registry")
	}
	if !containsPort(entries, 53, model.TCP) || !containsPort(entries, 53, model.UDP) {
		t.Fatalf("expected DNS to include port 53 over tcp and udp, got %#v", entries)
	}
}

func TestGetServiceIsCaseInsensitive(t *testing.T) {
	entries, ok := GetService(" SSH ")
	if !ok || !containsPort(entries, 22, model.TCP) {
		t.Fatalf("expected ssh to resolve to 22/tcp, got %#v", entries)
	}
}

func TestGetServiceReturnsFalseForUnknown(t *testing.T) {
	_, ok := GetService("definitely-not-a-service")
	if ok {
		t.Fatalf("expected unknown service to return ok=false")
	}
}

func TestServiceNameLooksUpByPortAndProtocol(t *testing.T) {
	if name, ok := ServiceName(3306, model.TCP); !ok || name != "mysql" {
		t.Fatalf("expected mysql for 3306/tcp, got %q", name)
	}
	if name, ok := ServiceName(123, model.UDP); !ok || name != "ntp" {
		t.Fatalf("expected ntp for 123/udp, got %q", name)
	}
	if _, ok := ServiceName(3306, model.UDP); ok {
		t.Fatalf("expected no udp service on 3306")
	}
}

func TestServiceNamesFollowCommonLabels(t *testing.T) {
	for _, tt := range []struct {
		port  int
		proto model.Protocol
		want  string
	}{
		{53, model.TCP, "dns"},
		{53, model.UDP, "dns"},
		{587, model.TCP, "smtp"},
		{25, model.TCP, "smtp"},
	} {
		if name, ok := ServiceName(tt.port, tt.proto); !ok || name != tt.want {
			t.Errorf("expected %s for %d/%s, got %q", tt.want, tt.port, tt.proto, name)
		}
	}
}

func TestAliasesResolveToPorts(t *testing.T) {
	entries, ok := GetService("domain")
	if !ok || !containsPort(entries, 53, model.TCP) || !containsPort(entries, 53, model.UDP) {
		t.Fatalf("expected domain alias to resolve to 53 over tcp and udp, got %#v", entries)
	}
	entries, ok = GetService("submission")
	if !ok || len(entries) != 1 || !containsPort(entries, 587, model.TCP) {
		t.Fatalf("expected submission alias to resolve to 587/tcp only, got %#v", entries)
	}
}

func TestLoadSkipsPlaceholdersAndBadRows(t *testing.T) {
	t.Cleanup(func() {
		if err := load(strings.NewReader(wellKnownPortsData)); err != nil {
			t.Fatalf("failed to restore registry: %v", err)
		}
	})

	table := "port,tcp,udp\n7000,alpha,N/A\nnot-a-port,beta,beta\n7001,,gamma\n7002\n"
	if err := load(strings.NewReader(table)); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if entries, ok := GetService("alpha"); !ok || !containsPort(entries, 7000, model.TCP) || len(entries) != 1 {
		t.Fatalf("expected alpha on 7000/tcp only, got %#v", entries)
	}
	if _, ok := GetService("beta"); ok {
		t.Fatalf("expected row with a bad port to be skipped")
	}
	if name, ok := ServiceName(7001, model.UDP); !ok || name != "gamma" {
		t.Fatalf("expected gamma for 7001/udp, got %q", name)
	}
	if _, ok := ServiceName(7000, model.UDP); ok {
		t.Fatalf("expected N/A to register nothing")
	}
}

func TestLoadRejectsEmptyTable(t *testing.T) {
	t.Cleanup(func() {
		load(strings.NewReader(wellKnownPortsData))
	})
	if err := load(strings.NewReader("")); err == nil {
		t.Fatalf("expected an error for a table without a header")
	}
}

func containsPort(entries []ServiceEntry, port int, protocol model.Protocol) bool {
	for _, entry := range entries {
		if entry.Port == port && entry.Protocol == protocol {
			return true
		}
	}
	return false
}
