package engine

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"firewall-simulator/internal/model"
	"firewall-simulator/internal/utils"

	"github.com/yl2chen/cidranger"
	"golang.org/x/sync/errgroup"
)

type PrecheckStatus string

const (
	StatusSkip     PrecheckStatus = "SKIP"
	StatusAllowAll PrecheckStatus = "ALLOW_ALL"
	StatusExpand   PrecheckStatus = "EXPAND"
)

// compiledRule is a rule with its address fields parsed. An invalid prefix
// means the field is unconstrained.
type compiledRule struct {
	rule model.Rule
	src  netip.Prefix
	dst  netip.Prefix
	// skip marks rules that can never match, e.g. an unknown protocol.
	skip bool
}

// Evaluator decides flows against a fixed, priority-ordered rule set. It
// holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	rules    []compiledRule
	srcIndex *addrIndex
	dstIndex *addrIndex
}

// NewEvaluator copies rules into evaluation order (priority, then id) and
// compiles them. Rules that cannot be compiled are kept in place but never match.
func NewEvaluator(rules []model.Rule) *Evaluator {
	ordered := make([]model.Rule, len(rules))
	copy(ordered, rules)
	model.SortRules(ordered)

	e := &Evaluator{
		rules:    make([]compiledRule, len(ordered)),
		srcIndex: newAddrIndex(len(ordered)),
		dstIndex: newAddrIndex(len(ordered)),
	}
	for i, r := range ordered {
		cr := compiledRule{rule: r}
		cr.rule.Protocol = model.Protocol(strings.ToLower(string(r.Protocol)))
		if !cr.rule.Protocol.Valid() {
			cr.skip = true
		}
		var err error
		if r.SrcIP != "" {
			if cr.src, err = utils.ParsePrefix(r.SrcIP); err != nil {
				cr.skip = true
			}
		}
		if r.DstIP != "" {
			if cr.dst, err = utils.ParsePrefix(r.DstIP); err != nil {
				cr.skip = true
			}
		}
		if !cr.skip {
			e.srcIndex.insert(cr.src, i)
			e.dstIndex.insert(cr.dst, i)
		}
		e.rules[i] = cr
	}
	e.srcIndex.build()
	e.dstIndex.build()
	return e
}

// Rules returns the rule set in evaluation order.
func (e *Evaluator) Rules() []model.Rule {
	rules := make([]model.Rule, len(e.rules))
	for i := range e.rules {
		rules[i] = e.rules[i].rule
	}
	return rules
}

type parsedFlow struct {
	src   netip.Addr
	dst   netip.Addr
	port  int
	proto model.Protocol
}

// parseFlow reports a *model.ValidationError if f is not a concrete flow.
func parseFlow(f model.Flow) (parsedFlow, error) {
	src, err := utils.ParseAddr(f.SrcIP)
	if err != nil {
		return parsedFlow{}, &model.ValidationError{Field: "src_ip", Value: f.SrcIP, Reason: "must be a concrete IP address"}
	}
	dst, err := utils.ParseAddr(f.DstIP)
	if err != nil {
		return parsedFlow{}, &model.ValidationError{Field: "dst_ip", Value: f.DstIP, Reason: "must be a concrete IP address"}
	}
	if f.Port < 0 || f.Port > 65535 {
		return parsedFlow{}, &model.ValidationError{Field: "port", Value: f.Port, Reason: "must be between 0 and 65535"}
	}
	proto := model.Protocol(strings.ToLower(strings.TrimSpace(string(f.Protocol))))
	if !proto.Valid() {
		return parsedFlow{}, &model.ValidationError{Field: "protocol", Value: f.Protocol, Reason: "must be one of [tcp udp]"}
	}
	return parsedFlow{src: src, dst: dst, port: f.Port, proto: proto}, nil
}

// Evaluate returns the decision of the first matching rule, or the implicit
// deny when none matches.
func (e *Evaluator) Evaluate(f model.Flow) (model.Decision, error) {
	pf, err := parseFlow(f)
	if err != nil {
		return model.Decision{}, err
	}
	return e.decide(f, pf), nil
}

// EvaluateBatch evaluates flows concurrently with at most workers goroutines
// (unbounded when workers <= 0). Decisions are returned in input order. All
// flows are validated before any is evaluated.
func (e *Evaluator) EvaluateBatch(ctx context.Context, flows []model.Flow, workers int) ([]model.Decision, error) {
	parsed := make([]parsedFlow, len(flows))
	for i, f := range flows {
		pf, err := parseFlow(f)
		if err != nil {
			return nil, fmt.Errorf("traffic[%d]: %w", i, err)
		}
		parsed[i] = pf
	}

	decisions := make([]model.Decision, len(flows))
	g, gCtx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range parsed {
		if gCtx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			decisions[i] = e.decide(flows[i], parsed[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decisions, nil
}

func (e *Evaluator) decide(f model.Flow, pf parsedFlow) model.Decision {
	srcHits := e.srcIndex.lookup(pf.src)
	dstHits := e.dstIndex.lookup(pf.dst)

	for i := range e.rules {
		cr := &e.rules[i]
		if cr.skip || cr.rule.Protocol != pf.proto {
			continue
		}
		if cr.rule.Port != 0 && cr.rule.Port != pf.port {
			continue
		}
		if cr.src.IsValid() && !srcHits[i] {
			continue
		}
		if cr.dst.IsValid() && !dstHits[i] {
			continue
		}

		id := cr.rule.ID
		if cr.rule.Action == model.Allow {
			return model.Decision{Flow: f, Allowed: true, MatchedRuleID: &id, Reason: model.ReasonAllow}
		}
		return model.Decision{Flow: f, Allowed: false, MatchedRuleID: &id, Reason: model.ReasonDeny}
	}
	return model.Decision{Flow: f, Allowed: false, Reason: model.ReasonImplicitDeny}
}

// Precheck decides a whole source/destination prefix pair at once when the
// first rule touching it covers both prefixes entirely. It returns
// StatusExpand when that rule only partially covers the pair, in which case
// the caller has to evaluate the addresses one by one.
func (e *Evaluator) Precheck(src, dst netip.Prefix, port int, proto model.Protocol) (PrecheckStatus, *model.Rule, string) {
	if !src.IsValid() || !dst.IsValid() {
		return StatusExpand, nil, "PRECHECK_INVALID_CIDR"
	}

	for i := range e.rules {
		cr := &e.rules[i]
		if cr.skip || cr.rule.Protocol != proto {
			continue
		}
		if cr.rule.Port != 0 && cr.rule.Port != port {
			continue
		}

		srcRel := prefixRelation(cr.src, src)
		if srcRel == relNone {
			continue
		}
		dstRel := prefixRelation(cr.dst, dst)
		if dstRel == relNone {
			continue
		}

		rule := cr.rule
		if srcRel != relFull || dstRel != relFull {
			return StatusExpand, &rule, "PRECHECK_PARTIAL"
		}
		if rule.Action == model.Allow {
			return StatusAllowAll, &rule, "PRECHECK_ALLOW_ALL"
		}
		return StatusSkip, &rule, "PRECHECK_DENY"
	}

	return StatusSkip, nil, "PRECHECK_IMPLICIT_DENY"
}

type cidrRelation int

const (
	relNone cidrRelation = iota
	relPartial
	relFull
)

// prefixRelation reports how much of target the rule prefix covers. An
// invalid rule prefix is "any" and covers everything.
func prefixRelation(rule, target netip.Prefix) cidrRelation {
	if !rule.IsValid() {
		return relFull
	}
	if rule.Addr().Is4() != target.Addr().Is4() || !rule.Overlaps(target) {
		return relNone
	}
	if rule.Bits() <= target.Bits() {
		return relFull
	}
	return relPartial
}

// addrIndex maps an address to the rules whose prefix contains it.
type addrIndex struct {
	ranger  cidranger.Ranger
	pending map[netip.Prefix][]int
	size    int
}

type ruleEntry struct {
	network net.IPNet
	rules   []int
}

func (r *ruleEntry) Network() net.IPNet {
	return r.network
}

func newAddrIndex(size int) *addrIndex {
	return &addrIndex{
		ranger:  cidranger.NewPCTrieRanger(),
		pending: make(map[netip.Prefix][]int),
		size:    size,
	}
}

func (x *addrIndex) insert(p netip.Prefix, rule int) {
	if !p.IsValid() {
		return
	}
	x.pending[p] = append(x.pending[p], rule)
}

// build loads the collected prefixes into the trie. Rules sharing a prefix
// share one entry since the trie keeps a single entry per network.
func (x *addrIndex) build() {
	for p, rules := range x.pending {
		x.ranger.Insert(&ruleEntry{network: utils.IPNet(p), rules: rules})
	}
	x.pending = nil
}

func (x *addrIndex) lookup(addr netip.Addr) []bool {
	hits := make([]bool, x.size)
	entries, err := x.ranger.ContainingNetworks(net.IP(addr.AsSlice()))
	if err != nil {
		return hits
	}
	for _, entry := range entries {
		re, ok := entry.(*ruleEntry)
		if !ok {
			continue
		}
		for _, i := range re.rules {
			hits[i] = true
		}
	}
	return hits
}
