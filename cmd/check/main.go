package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"webpage-compliance/internal/compliance"
	"webpage-compliance/internal/config"
)

type checkOptions struct {
	webpageURL string
	policyURL  string
	configPath string
	batchSize  int
}

func newRootCmd() *cobra.Command {
	opts := checkOptions{configPath: os.Getenv("COMPLIANCE_CONFIG")}
	cmd := &cobra.Command{
		Use:           "check",
		Short:         "Check a webpage against a policy document and print the JSON report",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.webpageURL, "webpage", "", "URL of the webpage to check")
	flags.StringVar(&opts.policyURL, "policy", "", "URL of the policy document")
	flags.StringVar(&opts.configPath, "config", opts.configPath, "path to a YAML config file")
	flags.IntVar(&opts.batchSize, "batch-size", 0, "sentences per classifier call (overrides config)")
	_ = cmd.MarkFlagRequired("webpage")
	_ = cmd.MarkFlagRequired("policy")
	return cmd
}

func runCheck(ctx context.Context, opts checkOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.batchSize < 0 {
		return errors.New("batch size must be positive")
	}
	if opts.batchSize > 0 {
		cfg.BatchSize = opts.batchSize
	}
	cfg.ApplyLogging()
	logrus.SetOutput(os.Stderr)

	service, err := compliance.NewServiceFromConfig(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := service.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close compliance service")
		}
	}()

	if cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
	}

	result, err := service.CheckCompliance(ctx, opts.webpageURL, opts.policyURL)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logrus.Errorf("check failed: %v", err)
		stop()
		os.Exit(1)
	}
}
