package main

import (
	"encoding/json"
	"time"

	"firewall-simulator/internal/model"
	"firewall-simulator/internal/scan"

	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	var (
		target      string
		ports       string
		scanType    string
		timeout     time.Duration
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a host with TCP connect and print the port states as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("timeout") {
				timeout = cfg.Scan.Timeout
			}
			if !cmd.Flags().Changed("concurrency") {
				concurrency = cfg.Scan.Concurrency
			}

			req := model.ScanRequest{
				Target:   target,
				ScanType: model.ScanType(scanType),
				Ports:    ports,
			}
			scanner := scan.NewTCPScanner(scan.Options{Timeout: timeout, Concurrency: concurrency})
			results, err := scanner.Scan(cmd.Context(), req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Target  string             `json:"target"`
				Results []model.ScanResult `json:"results"`
			}{Target: target, Results: results})
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Host name or address to scan (required)")
	cmd.Flags().StringVar(&ports, "ports", scan.DefaultPorts, "Ports to scan, e.g. 22,80,1000-2000")
	cmd.Flags().StringVar(&scanType, "type", string(model.ScanTCPConnect), "Scan type (only tcp_connect is supported)")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Second, "Per-port dial timeout")
	cmd.Flags().IntVar(&concurrency, "concurrency", 100, "Maximum concurrent dials")
	cmd.MarkFlagRequired("target")
	return cmd
}
