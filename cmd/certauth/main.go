package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/app"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/config"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/logging"
)

// operatorSubject is recorded as requested_by for CLI-initiated changes.
const operatorSubject = "cli"

type rootFlags struct {
	configPath string
	operator   string
}

func main() {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   filepath.Base(os.Args[0]),
		Short: "Certificate authority and audit administration",
		Args:  cobra.NoArgs,
		// Errors are printed once by main.
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", os.Getenv("CERTAUTH_CONFIG"), "path to a TOML config file")
	cmd.PersistentFlags().StringVar(&flags.operator, "operator", operatorSubject, "identity recorded as requested_by")

	cmd.AddCommand(
		newIssueCmd(flags),
		newRevokeCmd(flags),
		newRotateCmd(flags),
		newVerifyChainCmd(flags),
		newResetDeviceCmd(flags),
		newShowCmd(flags),
		newCRLCmd(flags),
	)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// withApp builds the services for one command and closes them afterwards.
func withApp(ctx context.Context, flags *rootFlags, fn func(*app.App) error) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New("warn", "console")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close backends", zap.Error(err))
		}
	}()
	return fn(a)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
