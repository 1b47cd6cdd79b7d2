package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"firewall-simulator/internal/model"

	"github.com/patrickmn/go-cache"
)

// CachedScanner serves repeated identical scans from memory for ttl.
type CachedScanner struct {
	next  Scanner
	cache *cache.Cache
}

func NewCachedScanner(next Scanner, ttl time.Duration) *CachedScanner {
	return &CachedScanner{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (s *CachedScanner) Scan(ctx context.Context, req model.ScanRequest) ([]model.ScanResult, error) {
	key := cacheKey(req)
	if v, ok := s.cache.Get(key); ok {
		cached := v.([]model.ScanResult)
		return append([]model.ScanResult(nil), cached...), nil
	}

	results, err := s.next.Scan(ctx, req)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, append([]model.ScanResult(nil), results...), cache.DefaultExpiration)
	return results, nil
}

func cacheKey(req model.ScanRequest) string {
	scanType := req.ScanType
	if scanType == "" {
		scanType = model.ScanTCPConnect
	}
	return fmt.Sprintf("%s|%s|%s", scanType, strings.ToLower(req.Target), strings.ReplaceAll(req.Ports, " ", ""))
}
