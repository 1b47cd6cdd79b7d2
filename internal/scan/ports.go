package scan

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DefaultPorts is scanned when a request names no ports.
const DefaultPorts = "1-1024"

// ParsePorts expands a list such as "22,80,1000-2000" into sorted, unique
// port numbers.
func ParsePorts(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		s = DefaultPorts
	}

	seen := make(map[int]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := parsePort(lo)
		if err != nil {
			return nil, err
		}
		end := start
		if isRange {
			if end, err = parsePort(hi); err != nil {
				return nil, err
			}
			if end < start {
				return nil, fmt.Errorf("invalid port range %q", part)
			}
		}
		for p := start; p <= end; p++ {
			seen[p] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("no ports in %q", s)
	}

	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < 1 || p > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return p, nil
}
