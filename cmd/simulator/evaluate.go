package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"firewall-simulator/internal/engine"
	"firewall-simulator/internal/metrics"
	"firewall-simulator/internal/model"
	"firewall-simulator/internal/parser"
	"firewall-simulator/internal/store"
	"firewall-simulator/internal/utils"

	"github.com/spf13/cobra"
)

const (
	modeSample = "sample"
	modeExpand = "expand"
)

type evaluateOptions struct {
	provider     string
	rulesFile    string
	rulesDB      string
	flowsFile    string
	outFile      string
	routableFile string
	workers      int
	mode         string
	maxHosts     uint64
	maxTasks     uint64
}

func newEvaluateCmd() *cobra.Command {
	opts := &evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a flow CSV against a rule set and write result CSVs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			if opts.mode != modeSample && opts.mode != modeExpand {
				return fmt.Errorf("unknown matching mode: %s", opts.mode)
			}
			return runEvaluate(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.provider, "provider", "file", "Rule provider type: 'file' or 'mariadb'")
	cmd.Flags().StringVar(&opts.rulesFile, "rules", "", "Rule file, YAML or JSON (for 'file' provider)")
	cmd.Flags().StringVar(&opts.rulesDB, "db", "", "Database connection string (for 'mariadb' provider)")
	cmd.Flags().StringVar(&opts.flowsFile, "flows", "", "Flow CSV file (required)")
	cmd.Flags().StringVar(&opts.outFile, "out", "results.csv", "Output CSV file for all results")
	cmd.Flags().StringVar(&opts.routableFile, "routable", "routable.csv", "Output CSV file for allowed traffic")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", runtime.NumCPU(), "Number of concurrent workers")
	cmd.Flags().StringVar(&opts.mode, "mode", modeSample, "Matching mode: 'sample' (test first IP) or 'expand' (test all IPs in small CIDRs)")
	cmd.Flags().Uint64Var(&opts.maxHosts, "max-hosts", 65536, "Maximum number of hosts in a CIDR to expand in 'expand' mode")
	cmd.Flags().Uint64Var(&opts.maxTasks, "max-tasks", 100000000, "Maximum number of flows allowed before aborting")
	cmd.MarkFlagRequired("flows")

	return cmd
}

func runEvaluate(ctx context.Context, opts *evaluateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.workers <= 0 {
		opts.workers = 1
	}
	startTime := time.Now()

	slog.Info("Loading rules...", "provider", opts.provider)
	specs, err := loadRules(opts.provider, opts.rulesFile, opts.rulesDB)
	if err != nil {
		slog.Error("Failed to load rules", "error", err)
		return err
	}
	st := store.New()
	if err := st.Load(specs); err != nil {
		slog.Error("Failed to import rules", "error", err)
		return err
	}
	slog.Info("Successfully loaded rules", "count", st.Len())
	evaluator := engine.NewEvaluator(st.List())

	flowsF, err := os.Open(opts.flowsFile)
	if err != nil {
		slog.Error("Failed to open flow file", "path", opts.flowsFile, "error", err)
		return err
	}
	input, err := parser.ParseFlows(flowsF)
	flowsF.Close()
	if err != nil {
		slog.Error("Failed to parse flow file", "error", err)
		return err
	}
	slog.Info("Flow file parsed", "flows", len(input.Flows), "skipped_rows", input.Skipped)

	totalFlows := estimateTotalTasks(input.Flows, opts.mode, opts.maxHosts)
	slog.Info("Flow count estimated", "total_flows", totalFlows)
	if opts.maxTasks > 0 && totalFlows > opts.maxTasks {
		slog.Error("Estimated flow count exceeds limit", "total_flows", totalFlows, "max_tasks", opts.maxTasks)
		return fmt.Errorf("estimated %d flows exceeds --max-tasks %d", totalFlows, opts.maxTasks)
	}

	outF, err := os.Create(opts.outFile)
	if err != nil {
		slog.Error("Failed to create output file", "path", opts.outFile, "error", err)
		return err
	}
	defer outF.Close()
	routableF, err := os.Create(opts.routableFile)
	if err != nil {
		slog.Error("Failed to create routable file", "path", opts.routableFile, "error", err)
		return err
	}
	defer routableF.Close()

	var completed uint64
	progressDone := make(chan struct{})
	if totalFlows > 0 {
		go reportProgress(totalFlows, &completed, progressDone)
	}

	tasks := make(chan model.Task, opts.workers*100)
	results := make(chan model.SimulationResult, opts.workers*100)

	writerErr := make(chan error, 1)
	go func() {
		writerErr <- resultWriter(results, csv.NewWriter(outF), csv.NewWriter(routableF), &completed)
	}()

	slog.Info("Starting evaluator workers", "count", opts.workers)
	var wg sync.WaitGroup
	for i := 0; i < opts.workers; i++ {
		wg.Add(1)
		go worker(&wg, i+1, evaluator, tasks, results)
	}

	produced := produceTasks(ctx, evaluator, input.Flows, opts.mode, opts.maxHosts, tasks)
	close(tasks)
	slog.Info("Task producer finished", "total_tasks", produced)

	wg.Wait()
	close(results)
	err = <-writerErr
	close(progressDone)
	if err != nil {
		slog.Error("Failed to write results", "error", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	slog.Info("Analysis complete", "duration", time.Since(startTime), "flows", atomic.LoadUint64(&completed))
	return nil
}

func reportProgress(total uint64, completed *uint64, done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	var lastLogged uint64
	for {
		select {
		case <-ticker.C:
			n := atomic.LoadUint64(completed)
			if n == lastLogged {
				continue
			}
			remaining := uint64(0)
			if n < total {
				remaining = total - n
			}
			percent := float64(n) / float64(total) * 100
			slog.Info("Progress", "total_flows", total, "completed_flows", n, "remaining_flows", remaining, "percent", fmt.Sprintf("%.2f", percent))
			lastLogged = n
			if n >= total {
				return
			}
		case <-done:
			return
		}
	}
}

// hostCount is the number of addresses a prefix contributes under mode.
func hostCount(p netip.Prefix, mode string, maxHosts uint64) uint64 {
	if mode != modeExpand {
		return 1
	}
	size := utils.PrefixSize(p)
	if size > 1 && size <= maxHosts {
		return size
	}
	return 1
}

func estimateTotalTasks(flows []parser.FlowSpec, mode string, maxHosts uint64) uint64 {
	var total uint64
	for _, f := range flows {
		total += hostCount(f.Src, mode, maxHosts) * hostCount(f.Dst, mode, maxHosts)
	}
	return total
}

// produceTasks turns flow rows into tasks. In expand mode a prefix pair that
// a single rule decides as a whole is sent once, carrying the number of
// flows it stands for. It returns the number of tasks sent.
func produceTasks(ctx context.Context, e *engine.Evaluator, flows []parser.FlowSpec, mode string, maxHosts uint64, tasks chan<- model.Task) int {
	sent := 0
	send := func(t model.Task) bool {
		select {
		case tasks <- t:
			sent++
			return true
		case <-ctx.Done():
			return false
		}
	}

	for _, f := range flows {
		base := model.Task{
			SrcIP:        f.Src.Addr(),
			SrcCIDR:      utils.FormatPrefix(f.Src),
			DstIP:        f.Dst.Addr(),
			DstCIDR:      utils.FormatPrefix(f.Dst),
			Port:         f.Port,
			Proto:        f.Protocol,
			ServiceLabel: f.Label,
			FlowCount:    1,
		}

		srcCount := hostCount(f.Src, mode, maxHosts)
		dstCount := hostCount(f.Dst, mode, maxHosts)
		if srcCount == 1 && dstCount == 1 {
			if !send(base) {
				return sent
			}
			continue
		}

		if status, rule, reason := e.Precheck(f.Src, f.Dst, f.Port, f.Protocol); status != engine.StatusExpand {
			slog.Debug("Prefix pair decided without expansion", "src", base.SrcCIDR, "dst", base.DstCIDR, "status", status, "reason", reason, "rule", rule)
			base.FlowCount = srcCount * dstCount
			if !send(base) {
				return sent
			}
			continue
		}

		ok := true
		utils.Hosts(f.Src, func(src netip.Addr) bool {
			utils.Hosts(f.Dst, func(dst netip.Addr) bool {
				t := base
				t.SrcIP = src
				t.DstIP = dst
				ok = send(t)
				return ok && dstCount > 1
			})
			return ok && srcCount > 1
		})
		if !ok {
			return sent
		}
	}
	return sent
}

func worker(wg *sync.WaitGroup, id int, evaluator *engine.Evaluator, tasks <-chan model.Task, results chan<- model.SimulationResult) {
	defer wg.Done()
	slog.Debug("Worker started", "id", id)
	for task := range tasks {
		result := model.SimulationResult{
			SrcNetworkSegment: task.SrcCIDR,
			DstNetworkSegment: task.DstCIDR,
			SrcIP:             task.SrcIP.String(),
			DstIP:             task.DstIP.String(),
			ServiceLabel:      task.ServiceLabel,
			Protocol:          string(task.Proto),
			Port:              task.Port,
			FlowCount:         task.FlowCount,
		}

		d, err := evaluator.Evaluate(task.Flow())
		switch {
		case err != nil:
			slog.Warn("Failed to evaluate flow", "worker", id, "src", result.SrcIP, "dst", result.DstIP, "error", err)
			result.Decision = "ERROR"
			result.Reason = err.Error()
		case d.Allowed:
			result.Decision = "ALLOW"
			result.Reason = d.Reason
		default:
			result.Decision = "DENY"
			result.Reason = d.Reason
		}
		if err == nil {
			metrics.ObserveDecision("cli", d.Allowed)
		}
		if d.MatchedRuleID != nil {
			result.MatchedRuleID = strconv.FormatInt(*d.MatchedRuleID, 10)
		}

		results <- result
	}
	slog.Debug("Worker finished", "id", id)
}

var resultHeader = []string{"src_network_segment", "dst_network_segment", "src_ip", "dst_ip", "service_label", "protocol", "port", "decision", "matched_rule_id", "reason", "flow_count"}

// resultWriter drains results into out and copies allowed rows to routable.
// It keeps draining after a write error so workers never block.
func resultWriter(results <-chan model.SimulationResult, out, routable *csv.Writer, completed *uint64) error {
	out.Write(resultHeader)
	routable.Write(resultHeader)

	var written uint64
	for result := range results {
		record := []string{
			result.SrcNetworkSegment,
			result.DstNetworkSegment,
			result.SrcIP,
			result.DstIP,
			result.ServiceLabel,
			result.Protocol,
			strconv.Itoa(result.Port),
			result.Decision,
			result.MatchedRuleID,
			result.Reason,
			strconv.FormatUint(result.FlowCount, 10),
		}
		out.Write(record)
		if result.Decision == "ALLOW" {
			routable.Write(record)
		}
		written += result.FlowCount
		atomic.StoreUint64(completed, written)
	}

	out.Flush()
	routable.Flush()
	if err := out.Error(); err != nil {
		return err
	}
	if err := routable.Error(); err != nil {
		return err
	}
	slog.Info("Result writer finished")
	return nil
}
