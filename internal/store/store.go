// Package store holds the working set of firewall rules for a session.
package store

import (
	"fmt"
	"sync"

	"firewall-simulator/internal/model"
)

// Store owns rule id assignment. Reads return copies sorted into evaluation
// order; writes are serialized.
type Store struct {
	mu     sync.RWMutex
	rules  map[int64]model.Rule
	nextID int64
}

func New() *Store {
	return &Store{
		rules:  make(map[int64]model.Rule),
		nextID: 1,
	}
}

// Add validates spec and stores it under the next unused id. Any id carried
// by spec is ignored.
func (s *Store) Add(spec model.RuleSpec) (model.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, err := NewRule(s.nextID, spec)
	if err != nil {
		return model.Rule{}, err
	}
	s.rules[rule.ID] = rule
	s.nextID++
	return rule, nil
}

// Load adds every spec in order and stops at the first invalid one.
func (s *Store) Load(specs []model.RuleSpec) error {
	for i, spec := range specs {
		if _, err := s.Add(spec); err != nil {
			return fmt.Errorf("rule %d: %w", i+1, err)
		}
	}
	return nil
}

// List returns the rules ordered by priority, then id.
func (s *Store) List() []model.Rule {
	s.mu.RLock()
	rules := make([]model.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		rules = append(rules, r)
	}
	s.mu.RUnlock()

	model.SortRules(rules)
	return rules
}

func (s *Store) Get(id int64) (model.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return model.Rule{}, &model.NotFoundError{ID: id}
	}
	return r, nil
}

func (s *Store) Remove(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return &model.NotFoundError{ID: id}
	}
	delete(s.rules, id)
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}
