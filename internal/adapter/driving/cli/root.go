// Package cli is the command-line driving adapter. The root command runs the
// watcher service; the other commands talk to a running service over its
// REST API.
package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const defaultServerAddr = "127.0.0.1:8080"

// ServeFunc runs the watcher service until ctx is cancelled.
type ServeFunc func(ctx context.Context) error

// options are the flags shared by the client commands.
type options struct {
	addr    string
	timeout time.Duration
}

// NewRootCommand builds the threadwatch command tree. Running it without a
// subcommand is the same as "serve".
func NewRootCommand(serve ServeFunc, version string) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "threadwatch",
		Short: "Watch a GitHub comment thread and turn changes into commands",
		Long: `threadwatch polls a pull request or issue comment thread, classifies
every change (new, edited, deleted, resolved, reopened) and feeds the
resulting commands to the configured sinks.

Documents are addressed as owner/repo#number.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&opts.addr, "addr", serverAddrFromEnv(),
		"address of a running threadwatch server (client commands)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second,
		"request timeout for client commands")

	root.AddCommand(
		newServeCommand(serve),
		newWatchCommand(opts),
		newUnwatchCommand(opts),
		newStatusCommand(opts),
		newQueueCommand(opts),
		newRequirementsCommand(opts),
		newLoginCommand(opts),
		newVersionCommand(version),
	)

	return root
}

func newServeCommand(serve ServeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the watcher service and its REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("threadwatch version %s\n", version)
		},
	}
}

func serverAddrFromEnv() string {
	if v := os.Getenv("THREADWATCH_LISTEN_ADDR"); v != "" {
		return v
	}
	return defaultServerAddr
}
