package wellknown

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	_ "embed"

	"firewall-simulator/internal/model"
)

//go:embed well_known_ports.csv
var wellKnownPortsData string

type ServiceEntry struct {
	Protocol model.Protocol
	Port     int
}

type portKey struct {
	port  int
	proto model.Protocol
}

var (
	serviceRegistry map[string][]ServiceEntry
	portRegistry    map[portKey]string
)

func init() {
	if err := load(strings.NewReader(wellKnownPortsData)); err != nil {
		log.Fatalf("Failed to parse embedded well_known_ports.csv: %v", err)
	}
}

// load fills the registries from a "port,tcp,udp[,aliases]" table. Aliases
// are space separated and only resolve names to ports; ServiceName always
// reports the tcp or udp column. Rows with a non-numeric port are ignored.
func load(r io.Reader) error {
	serviceRegistry = make(map[string][]ServiceEntry)
	portRegistry = make(map[portKey]string)

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if len(record) < 3 {
			continue
		}
		port, err := strconv.Atoi(record[0])
		if err != nil {
			continue
		}
		var aliases []string
		if len(record) > 3 {
			aliases = strings.Fields(record[3])
		}
		register(strings.TrimSpace(record[1]), port, model.TCP, aliases)
		register(strings.TrimSpace(record[2]), port, model.UDP, aliases)
	}
}

func register(name string, port int, proto model.Protocol, aliases []string) {
	if name == "" || name == "N/A" {
		return
	}
	entry := ServiceEntry{Protocol: proto, Port: port}
	for _, n := range append([]string{name}, aliases...) {
		key := strings.ToUpper(n)
		serviceRegistry[key] = append(serviceRegistry[key], entry)
	}
	portRegistry[portKey{port: port, proto: proto}] = name
}

// GetService returns the port and protocol for a well-known service name.
func GetService(name string) ([]ServiceEntry, bool) {
	entry, ok := serviceRegistry[strings.ToUpper(strings.TrimSpace(name))]
	return entry, ok
}

// ServiceName returns the registered service name for port over proto.
func ServiceName(port int, proto model.Protocol) (string, bool) {
	name, ok := portRegistry[portKey{port: port, proto: proto}]
	return name, ok
}
