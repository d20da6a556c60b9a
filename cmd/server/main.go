package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"meritledger/internal/platform/config"
	"meritledger/internal/platform/logger"
)

const programName = "meritledger"

var globalFlags = struct {
	debug bool
}{}

func slogPrintf(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), "component", programName)
}

// commonRun loads configuration and installs the process logger.
func commonRun() (config.Config, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	if globalFlags.debug {
		cfg.Log.Level = "debug"
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)
	if _, err := maxprocs.Set(maxprocs.Logger(slogPrintf)); err != nil {
		return config.Config{}, nil, fmt.Errorf("set maxprocs: %w", err)
	}
	return cfg, log, nil
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           programName,
		Short:         "Academic certificate registry and scholarship escrow",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveRun,
	}
	root.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")

	root.AddCommand(serveCommand())
	root.AddCommand(migrateCommand())
	root.AddCommand(tokenCommand())
	root.AddCommand(bootstrapCommand())
	return root
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
