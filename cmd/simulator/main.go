package main

import (
	"fmt"
	"log/slog"
	"os"

	"firewall-simulator/internal/config"
	"firewall-simulator/internal/logging"
	"firewall-simulator/internal/model"
	"firewall-simulator/internal/parser"

	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
	logFile    string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "firewall-simulator",
		Short: "Firewall rule store and policy simulator",
		Long: `firewall-simulator keeps an ordered set of firewall rules and decides
whether traffic flows are allowed or denied by the first matching rule.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: simulator.yaml in the search path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path (default: stderr)")

	rootCmd.AddCommand(newServeCmd(), newEvaluateCmd(), newScanCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the root flags on top of it,
// then installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFile != "" {
		cfg.Log.Output = logFile
	}
	slog.SetDefault(setupLogger(cfg.Log))
	return cfg, nil
}

func setupLogger(cfg *config.LogConfig) *slog.Logger {
	opts := logging.Options{
		Level:  cfg.Level,
		Output: cfg.Output,
	}
	if r := cfg.Rotation; r != nil {
		opts.Rotation = &logging.Rotation{
			MaxSize:    r.MaxSize,
			MaxAge:     r.MaxAge,
			MaxBackups: r.MaxBackups,
			LocalTime:  r.LocalTime,
			Compress:   r.Compress,
		}
	}
	return logging.New(opts)
}

func loadRules(provider, rulesPath, dsn string) ([]model.RuleSpec, error) {
	switch provider {
	case "", "file":
		if rulesPath == "" {
			if provider == "" {
				return nil, nil
			}
			return nil, fmt.Errorf("rules file path must be provided for file provider")
		}
		return parser.LoadRuleFile(rulesPath)
	case "mariadb":
		if dsn == "" {
			return nil, fmt.Errorf("database connection string must be provided for mariadb provider")
		}
		l, err := parser.NewMariaDBLoader(dsn)
		if err != nil {
			return nil, err
		}
		defer l.Close()
		return l.Load()
	default:
		return nil, fmt.Errorf("unknown rule provider: %s", provider)
	}
}
