// Package scan implements the port scan collaborator behind /api/scan.
// Only TCP connect probing is supported.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"firewall-simulator/internal/model"
	"firewall-simulator/pkg/wellknown"

	"golang.org/x/sync/errgroup"
)

var (
	ErrUnsupportedScanType = errors.New("unsupported scan type")
	ErrInvalidRequest      = errors.New("invalid scan request")
	ErrUnresolvable        = errors.New("cannot resolve target")
)

type Scanner interface {
	Scan(ctx context.Context, req model.ScanRequest) ([]model.ScanResult, error)
}

// Dialer is satisfied by *net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type Options struct {
	Timeout     time.Duration
	Concurrency int
	Dialer      Dialer
	Resolver    *net.Resolver
}

// TCPScanner checks ports with a full TCP handshake.
type TCPScanner struct {
	opts Options
}

func NewTCPScanner(opts Options) *TCPScanner {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 100
	}
	if opts.Dialer == nil {
		opts.Dialer = &net.Dialer{}
	}
	if opts.Resolver == nil {
		opts.Resolver = net.DefaultResolver
	}
	return &TCPScanner{opts: opts}
}

// Validate checks the request without touching the network and returns the
// ports it names.
func Validate(req model.ScanRequest) ([]int, error) {
	if req.Target == "" {
		return nil, fmt.Errorf("%w: target is required", ErrInvalidRequest)
	}
	switch req.ScanType {
	case model.ScanTCPConnect, "":
	case model.ScanNmapSYN, model.ScanNmapUDP:
		return nil, fmt.Errorf("%w: %s requires raw sockets", ErrUnsupportedScanType, req.ScanType)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScanType, req.ScanType)
	}
	ports, err := ParsePorts(req.Ports)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return ports, nil
}

// Scan returns one result per requested port, in port order. A port whose
// dial fails for a reason other than refusal or timeout is reported with
// status "error" rather than failing the scan. A target that does not
// resolve fails the whole scan with ErrUnresolvable.
func (s *TCPScanner) Scan(ctx context.Context, req model.ScanRequest) ([]model.ScanResult, error) {
	ports, err := Validate(req)
	if err != nil {
		return nil, err
	}

	addr, err := s.resolve(ctx, req.Target)
	if err != nil {
		return nil, err
	}
	slog.Debug("Starting TCP connect scan", "target", req.Target, "addr", addr, "ports", len(ports))

	results := make([]model.ScanResult, len(ports))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, port := range ports {
		i, port := i, port
		g.Go(func() error {
			results[i] = s.dialPort(gCtx, addr, port)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *TCPScanner) resolve(ctx context.Context, target string) (string, error) {
	if net.ParseIP(target) != nil {
		return target, nil
	}
	addrs, err := s.opts.Resolver.LookupHost(ctx, target)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrUnresolvable, target, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("%w %q: no addresses", ErrUnresolvable, target)
	}
	return addrs[0], nil
}

func (s *TCPScanner) dialPort(ctx context.Context, addr string, port int) model.ScanResult {
	result := model.ScanResult{IP: addr, Port: port, Service: "unknown"}
	if name, ok := wellknown.ServiceName(port, model.TCP); ok {
		result.Service = name
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	conn, err := s.opts.Dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
	if err == nil {
		conn.Close()
		result.Status = model.StatusOpen
		return result
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case ctx.Err() != nil, errors.As(err, &dnsErr):
		result.Status = model.StatusError
	case errors.As(err, &opErr) && opErr.Op == "dial":
		result.Status = model.StatusClosed
	default:
		result.Status = model.StatusError
	}
	return result
}
