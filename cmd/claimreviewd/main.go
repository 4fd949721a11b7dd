// Command claimreviewd serves patent claim review over websocket and HTTP,
// and reviews single documents from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitIssues       = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitRuntimeError = 4
)

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

var rootCmd = &cobra.Command{
	Use:           "claimreviewd",
	Short:         "Patent claim review service",
	Long:          "claimreviewd reviews patent claim drafts with an LLM and reports drafting issues as structured suggestions.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print claimreviewd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "claimreviewd version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, reviewCmd, versionCmd)
}

// run executes the root command and returns an exit code.
func run(args []string) int {
	exitCode = ExitSuccess
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		if exitCode == ExitSuccess {
			return ExitUsageError
		}
	}
	return exitCode
}

func main() {
	os.Exit(run(os.Args[1:]))
}
