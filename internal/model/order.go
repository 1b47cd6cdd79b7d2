package model

import "sort"

// SortRules puts rules into evaluation order: priority ascending, id ascending.
// Rules sharing both keep their relative order.
func SortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
}
