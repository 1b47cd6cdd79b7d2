package model

import "net/netip"

type Protocol string // "tcp", "udp"

const (
	TCP Protocol = "tcp"
	UDP Protocol = "udp"
)

// Valid reports whether p is a protocol rules and flows may carry.
func (p Protocol) Valid() bool {
	return p == TCP || p == UDP
}

type Action string // "allow", "deny"

const (
	Allow Action = "allow"
	Deny  Action = "deny"
)

// DefaultPriority is applied when a rule is created without an explicit priority.
const DefaultPriority = 100

// Rule is a stored firewall rule. Empty address fields and a zero port mean "any".
type Rule struct {
	ID       int64    `json:"id" yaml:"id"`
	Action   Action   `json:"action" yaml:"action"`
	SrcIP    string   `json:"src_ip,omitempty" yaml:"src_ip,omitempty"`
	DstIP    string   `json:"dst_ip,omitempty" yaml:"dst_ip,omitempty"`
	Port     int      `json:"port,omitempty" yaml:"port,omitempty"`
	Protocol Protocol `json:"protocol" yaml:"protocol"`
	Priority int      `json:"priority" yaml:"priority"`
}

// RuleSpec is the caller-supplied shape of a rule before an id is assigned.
// ID is only honoured when a whole rule set is submitted for simulation.
type RuleSpec struct {
	ID       *int64   `json:"id,omitempty" yaml:"id,omitempty"`
	Action   Action   `json:"action" yaml:"action" validate:"required,oneof=allow deny"`
	SrcIP    string   `json:"src_ip,omitempty" yaml:"src_ip,omitempty" validate:"omitempty,ipcidr"`
	DstIP    string   `json:"dst_ip,omitempty" yaml:"dst_ip,omitempty" validate:"omitempty,ipcidr"`
	Port     int      `json:"port,omitempty" yaml:"port,omitempty" validate:"min=0,max=65535"`
	Protocol Protocol `json:"protocol" yaml:"protocol" validate:"required,oneof=tcp udp"`
	Priority *int     `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Flow is one concrete traffic sample to be judged.
type Flow struct {
	SrcIP    string   `json:"src_ip"`
	DstIP    string   `json:"dst_ip"`
	Port     int      `json:"port"`
	Protocol Protocol `json:"protocol"`
}

const (
	ReasonAllow        = "MATCH_RULE_ALLOW"
	ReasonDeny         = "MATCH_RULE_DENY"
	ReasonImplicitDeny = "IMPLICIT_DENY"
)

// Decision is the outcome of evaluating one flow. MatchedRuleID is nil when
// the default policy applied.
type Decision struct {
	Flow          Flow   `json:"traffic"`
	Allowed       bool   `json:"allowed"`
	MatchedRuleID *int64 `json:"matched_rule_id"`
	Reason        string `json:"reason"`
}

// Task is a unit of work for the offline analyzer.
type Task struct {
	SrcIP        netip.Addr
	SrcCIDR      string
	DstIP        netip.Addr
	DstCIDR      string
	Port         int
	Proto        Protocol
	ServiceLabel string
	// FlowCount is the number of concrete flows the task stands for when a
	// whole prefix pair was decided without expansion.
	FlowCount uint64
}

// Flow converts the task into an evaluator input.
func (t *Task) Flow() Flow {
	return Flow{
		SrcIP:    t.SrcIP.String(),
		DstIP:    t.DstIP.String(),
		Port:     t.Port,
		Protocol: t.Proto,
	}
}

type SimulationResult struct {
	SrcNetworkSegment string
	DstNetworkSegment string
	SrcIP             string
	DstIP             string
	ServiceLabel      string
	Protocol          string
	Port              int
	Decision          string // "ALLOW", "DENY"
	MatchedRuleID     string
	Reason            string
	FlowCount         uint64
}
