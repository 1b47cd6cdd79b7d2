package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"firewall-simulator/internal/model"
)

func TestParseRulesReadsYAML(t *testing.T) {
	doc := `rules:
  - action: deny
    dst_ip: 10.0.0.0/8
    protocol: tcp
    priority: 10
  - action: allow
    protocol: tcp
`
	specs, err := ParseRules(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(specs))
	}
	if specs[0].Action != model.Deny || specs[0].DstIP != "10.0.0.0/8" || specs[0].Priority == nil || *specs[0].Priority != 10 {
		t.Fatalf("unexpected first rule %+v", specs[0])
	}
	if specs[1].Priority != nil {
		t.Fatalf("expected omitted priority to stay nil, got %d", *specs[1].Priority)
	}
}

func TestLoadRuleFileReadsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	doc := `{"rules": [{"action": "allow", "src_ip": "192.168.0.0/16", "port": 443, "protocol": "tcp"}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("failed to write rule file: %v", err)
	}

	specs, err := LoadRuleFile(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(specs) != 1 || specs[0].Port != 443 || specs[0].SrcIP != "192.168.0.0/16" {
		t.Fatalf("unexpected rules %+v", specs)
	}
}

func TestParseRulesRejectsUnknownFields(t *testing.T) {
	if _, err := ParseRules(strings.NewReader("rules:\n  - action: allow\n    proto: tcp\n")); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestParseRulesAcceptsEmptyDocument(t *testing.T) {
	specs, err := ParseRules(strings.NewReader(""))
	if err != nil || len(specs) != 0 {
		t.Fatalf("expected empty rule set, got %v, %v", specs, err)
	}
}
