package parser

import (
	"fmt"
	"io"
	"os"

	"firewall-simulator/internal/model"

	"gopkg.in/yaml.v3"
)

// RuleFile is the on-disk rule set format. JSON documents are accepted as
// well since they are valid YAML.
type RuleFile struct {
	Rules []model.RuleSpec `yaml:"rules" json:"rules"`
}

// ParseRules decodes a rule file. Rules are validated by the store, not here.
func ParseRules(r io.Reader) ([]model.RuleSpec, error) {
	var file RuleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode rule file: %w", err)
	}
	return file.Rules, nil
}

func LoadRuleFile(path string) ([]model.RuleSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseRules(f)
}
