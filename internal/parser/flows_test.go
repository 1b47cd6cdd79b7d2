package parser

import (
	"strings"
	"testing"

	"firewall-simulator/internal/model"
)

func TestParseFlowsParsesNumericAndNamedPorts(t *testing.T) {
	csv := strings.NewReader("Src_IP,Dst_IP,Port,Protocol,Label\n" +
		"10.0.0.0/24,192.168.1.5,22,tcp,\n" +
		"1.1.1.1,2001:db8::1,dns,,resolver\n" +
		"1.1.1.1,8.8.8.8,443/TCP,,\n")

	input, err := ParseFlows(csv)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if input.Skipped != 0 {
		t.Fatalf("expected no skipped rows, got %d", input.Skipped)
	}
	if len(input.Flows) != 4 {
		t.Fatalf("expected 4 flows (dns expands to tcp+udp), got %d", len(input.Flows))
	}

	first := input.Flows[0]
	if first.Src.String() != "10.0.0.0/24" || first.Dst.String() != "192.168.1.5/32" {
		t.Fatalf("unexpected prefixes %s -> %s", first.Src, first.Dst)
	}
	if first.Port != 22 || first.Protocol != model.TCP || first.Label != "ssh" {
		t.Fatalf("unexpected first flow %+v", first)
	}

	for _, f := range input.Flows[1:3] {
		if f.Port != 53 || f.Label != "resolver" {
			t.Fatalf("expected dns flows on 53 labelled resolver, got %+v", f)
		}
	}
	if last := input.Flows[3]; last.Port != 443 || last.Protocol != model.TCP {
		t.Fatalf("expected 443/tcp, got %+v", last)
	}
}

func TestParseFlowsFiltersServiceByProtocol(t *testing.T) {
	input, err := ParseFlows(strings.NewReader("src_ip,dst_ip,port,protocol\n1.1.1.1,2.2.2.2,dns,udp\n"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(input.Flows) != 1 || input.Flows[0].Protocol != model.UDP {
		t.Fatalf("expected a single udp flow, got %+v", input.Flows)
	}
}

func TestParseFlowsSkipsInvalidRows(t *testing.T) {
	csv := strings.NewReader("src_ip,dst_ip,port,protocol\n" +
		"not-an-ip,2.2.2.2,22,tcp\n" +
		"1.1.1.1,2.2.2.2,22,icmp\n" +
		"1.1.1.1,2.2.2.2,70000,tcp\n" +
		"1.1.1.1,2.2.2.2,22,\n" +
		"1.1.1.1,2.2.2.2,no-such-service,tcp\n" +
		"1.1.1.1,2.2.2.2,80,tcp\n")

	input, err := ParseFlows(csv)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if input.Skipped != 5 {
		t.Fatalf("expected 5 skipped rows, got %d", input.Skipped)
	}
	if len(input.Flows) != 1 || input.Flows[0].Port != 80 {
		t.Fatalf("expected only the 80/tcp flow, got %+v", input.Flows)
	}
}

func TestParseFlowsRequiresColumns(t *testing.T) {
	if _, err := ParseFlows(strings.NewReader("src_ip,port\n1.1.1.1,22\n")); err == nil {
		t.Fatalf("expected error for missing dst_ip column")
	}
	if _, err := ParseFlows(strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty input")
	}
}
