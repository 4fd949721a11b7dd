package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/KamdynS/claimreview/config"
	"github.com/KamdynS/claimreview/observability"
	"github.com/KamdynS/claimreview/textnorm"
)

var (
	flagTimeout      time.Duration
	flagFailOnIssues bool
)

var reviewCmd = &cobra.Command{
	Use:   "review <file|->",
	Short: "Review one claim document and print the result as JSON",
	Long:  "Review reads an HTML or plain-text claim document from a file, or stdin when the argument is \"-\", runs one review cycle and prints the suggestions and diagram insertions.",
	Args:  cobra.ExactArgs(1),
	RunE:  runReview,
}

func init() {
	reviewCmd.Flags().DurationVar(&flagTimeout, "timeout", 2*time.Minute, "Review timeout")
	reviewCmd.Flags().BoolVar(&flagFailOnIssues, "fail-on-issues", false, "Exit 1 when any suggestion is produced")
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		exitCode = ExitConfigError
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		exitCode = ExitConfigError
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := observability.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	raw, err := readDocument(cmd.InOrStdin(), args[0])
	if err != nil {
		exitCode = ExitUsageError
		return err
	}
	text, err := textnorm.Normalize(raw, bounds(cfg))
	if err != nil {
		exitCode = ExitUsageError
		return err
	}

	reviewer, err := newReviewer(cfg, logger)
	if err != nil {
		exitCode = ExitConfigError
		return err
	}
	stopTracing, err := withTracing(cfg, logger)
	if err != nil {
		exitCode = ExitConfigError
		return err
	}
	defer stopTracing()

	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()
	res, err := reviewer.Review(ctx, text)
	if err != nil {
		exitCode = ExitRuntimeError
		return fmt.Errorf("review: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		exitCode = ExitRuntimeError
		return err
	}
	if flagFailOnIssues && len(res.Issues) > 0 {
		exitCode = ExitIssues
	}
	return nil
}

func readDocument(stdin io.Reader, arg string) (string, error) {
	if arg == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(b), nil
}
