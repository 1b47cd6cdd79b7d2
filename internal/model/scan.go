package model

type ScanType string

const (
	ScanTCPConnect ScanType = "tcp_connect"
	ScanNmapSYN    ScanType = "nmap_syn"
	ScanNmapUDP    ScanType = "nmap_udp"
)

type ScanStatus string

const (
	StatusOpen   ScanStatus = "open"
	StatusClosed ScanStatus = "closed"
	StatusError  ScanStatus = "error"
)

type ScanRequest struct {
	Target   string   `json:"target"`
	ScanType ScanType `json:"scan_type"`
	Ports    string   `json:"ports"`
}

type ScanResult struct {
	IP      string     `json:"ip"`
	Port    int        `json:"port"`
	Service string     `json:"service,omitempty"`
	Status  ScanStatus `json:"status"`
}
