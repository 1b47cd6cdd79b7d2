package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"strconv"
	"strings"

	"firewall-simulator/internal/model"
	"firewall-simulator/internal/utils"
	"firewall-simulator/pkg/wellknown"
)

// FlowSpec is one row of a flow file. Src and Dst may cover more than one
// address; the analyzer decides whether to sample or expand them.
type FlowSpec struct {
	Src      netip.Prefix
	Dst      netip.Prefix
	Port     int
	Protocol model.Protocol
	Label    string
}

type FlowInput struct {
	Flows   []FlowSpec
	Skipped int
}

// ParseFlows reads a CSV with the columns src_ip, dst_ip, port and protocol
// (any order, case-insensitive) and an optional label column. The port
// column also accepts "22/tcp" or a well-known service name such as "ssh",
// in which case an empty protocol column expands to every protocol the
// service is registered for. Rows that cannot be parsed are skipped.
func ParseFlows(r io.Reader) (*FlowInput, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("could not read header: %w", err)
	}

	colMap := make(map[string]int)
	for i, colName := range header {
		colMap[strings.ToLower(strings.TrimSpace(colName))] = i
	}
	for _, required := range []string{"src_ip", "dst_ip", "port"} {
		if _, ok := colMap[required]; !ok {
			return nil, fmt.Errorf("could not find %q column in flow file", required)
		}
	}

	input := &FlowInput{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		flows, err := parseFlowRecord(record, colMap)
		if err != nil {
			slog.Debug("Skipping flow row", "line", line, "error", err)
			input.Skipped++
			continue
		}
		input.Flows = append(input.Flows, flows...)
	}
	return input, nil
}

func parseFlowRecord(record []string, colMap map[string]int) ([]FlowSpec, error) {
	get := func(col string) string {
		i, ok := colMap[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	src, err := utils.ParsePrefix(get("src_ip"))
	if err != nil {
		return nil, fmt.Errorf("src_ip: %w", err)
	}
	dst, err := utils.ParsePrefix(get("dst_ip"))
	if err != nil {
		return nil, fmt.Errorf("dst_ip: %w", err)
	}

	portField := get("port")
	proto := model.Protocol(strings.ToLower(get("protocol")))
	if p, pr, ok := strings.Cut(portField, "/"); ok {
		portField = p
		if proto == "" {
			proto = model.Protocol(strings.ToLower(pr))
		}
	}
	if proto != "" && !proto.Valid() {
		return nil, fmt.Errorf("unsupported protocol %q", proto)
	}
	label := get("label")

	if port, err := strconv.Atoi(portField); err == nil {
		if port < 0 || port > 65535 {
			return nil, fmt.Errorf("port %d out of range", port)
		}
		if proto == "" {
			return nil, fmt.Errorf("protocol is required for numeric port %d", port)
		}
		if label == "" {
			label, _ = wellknown.ServiceName(port, proto)
		}
		return []FlowSpec{{Src: src, Dst: dst, Port: port, Protocol: proto, Label: label}}, nil
	}

	entries, ok := wellknown.GetService(portField)
	if !ok {
		return nil, fmt.Errorf("unknown service %q", portField)
	}
	if label == "" {
		label = strings.ToLower(portField)
	}
	var flows []FlowSpec
	for _, e := range entries {
		if proto != "" && e.Protocol != proto {
			continue
		}
		flows = append(flows, FlowSpec{Src: src, Dst: dst, Port: e.Port, Protocol: e.Protocol, Label: label})
	}
	if len(flows) == 0 {
		return nil, fmt.Errorf("service %q is not registered for %s", portField, proto)
	}
	return flows, nil
}
