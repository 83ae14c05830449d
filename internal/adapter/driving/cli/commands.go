package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/threadwatch/internal/adapter/driving/http"
	"github.com/ericfisherdev/threadwatch/internal/domain/model"
)

func newWatchCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "watch owner/repo#number",
		Short:   "Start watching a document's comment thread",
		Example: "  threadwatch watch octocat/hello-world#42",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := model.ParseDocRef(args[0])
			if err != nil {
				return err
			}

			var status httphandler.WatchStatusResponse
			req := httphandler.StartWatchRequest{Token: ref.Token()}
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/watches", req, &status); err != nil {
				return err
			}

			cmd.Printf("Watching %s (idle limit %d)\n", status.Token, status.IdleLimit)
			return nil
		},
	}
}

func newUnwatchCommand(opts *options) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "unwatch [owner/repo#number]",
		Short: "Stop watching a document, or every document with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(opts)

			if all {
				if err := client.do(cmd.Context(), http.MethodDelete, "/api/v1/watches", nil, nil); err != nil {
					return err
				}
				cmd.Println("Stopped all watches")
				return nil
			}
			if len(args) == 0 {
				return errors.New("a document token or --all is required")
			}

			ref, err := model.ParseDocRef(args[0])
			if err != nil {
				return err
			}
			if err := client.do(cmd.Context(), http.MethodDelete, "/api/v1/watches"+docPath(ref), nil, nil); err != nil {
				return err
			}
			cmd.Printf("Stopped watching %s\n", ref.Token())
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "stop every watch")
	return cmd
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status [owner/repo#number]",
		Short: "Show watch status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(opts)

			if len(args) == 1 {
				ref, err := model.ParseDocRef(args[0])
				if err != nil {
					return err
				}
				var ws httphandler.WatchStatusResponse
				if err := client.do(cmd.Context(), http.MethodGet, "/api/v1/watches"+docPath(ref), nil, &ws); err != nil {
					return err
				}
				printWatch(cmd, ws)
				return nil
			}

			var status httphandler.ManagerStatusResponse
			if err := client.do(cmd.Context(), http.MethodGet, "/api/v1/watches/status", nil, &status); err != nil {
				return err
			}
			if len(status.Watches) == 0 {
				cmd.Println("No documents watched")
				return nil
			}
			for _, ws := range status.Watches {
				printWatch(cmd, ws)
			}
			return nil
		},
	}
}

func newQueueCommand(opts *options) *cobra.Command {
	var clearQueue bool

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show command queue depth and counters, or clear it with --clear",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := newAPIClient(opts)

			if clearQueue {
				var resp httphandler.ClearQueueResponse
				if err := client.do(cmd.Context(), http.MethodDelete, "/api/v1/queue", nil, &resp); err != nil {
					return err
				}
				cmd.Printf("Cleared %d pending command(s)\n", resp.Cleared)
				return nil
			}

			var qs httphandler.QueueStatusResponse
			if err := client.do(cmd.Context(), http.MethodGet, "/api/v1/queue", nil, &qs); err != nil {
				return err
			}
			cmd.Printf("queue %d/%d  dispatched %d  dropped %d  executed %d  failed %d",
				qs.Size, qs.Capacity, qs.Dispatched, qs.Dropped, qs.Executed, qs.Failed)
			if qs.PendingBatches > 0 {
				cmd.Printf("  pending batches %d", qs.PendingBatches)
			}
			cmd.Println()
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearQueue, "clear", false, "discard every pending command")
	return cmd
}

func newRequirementsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "requirements owner/repo#number",
		Short: "List tracked requirements for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := model.ParseDocRef(args[0])
			if err != nil {
				return err
			}

			var reqs []httphandler.RequirementResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/requirements"+docPath(ref), nil, &reqs); err != nil {
				return err
			}
			if len(reqs) == 0 {
				cmd.Printf("No requirements tracked for %s\n", ref.Token())
				return nil
			}
			for _, r := range reqs {
				cmd.Printf("%-10s %-9s r%d  @%s  %s\n", r.CommentID, r.Status, r.Revision, r.Author, r.Summary)
			}
			return nil
		},
	}
}

func newLoginCommand(opts *options) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Hand a GitHub token to the running service",
		Long: `Sends a GitHub token to the running service, which swaps its fetcher
immediately. The token is read from --token or THREADWATCH_GITHUB_TOKEN and is
persisted only when the server has THREADWATCH_SECRET_KEY set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" {
				token = os.Getenv("THREADWATCH_GITHUB_TOKEN")
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("no token: pass --token or set THREADWATCH_GITHUB_TOKEN")
			}

			var resp httphandler.CredentialStatusResponse
			req := httphandler.SetCredentialRequest{Token: token}
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPut, "/api/v1/credentials/github", req, &resp); err != nil {
				return err
			}

			if resp.Persisted {
				cmd.Println("GitHub token stored")
			} else {
				cmd.Println("GitHub token active until the server restarts (no secret key configured)")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "GitHub personal access token")
	return cmd
}

func docPath(ref model.DocRef) string {
	return fmt.Sprintf("/%s/%s/%d", ref.Owner, ref.Repo, ref.Number)
}

func printWatch(cmd *cobra.Command, ws httphandler.WatchStatusResponse) {
	cmd.Printf("%s  %s  idle %d/%d  comments %d  events %d",
		ws.Token, ws.State, ws.IdleCount, ws.IdleLimit, ws.LastCommentCount, ws.EventsEmitted)
	if ws.ConsecutiveFailures > 0 {
		cmd.Printf("  failures %d (%s)", ws.ConsecutiveFailures, ws.LastError)
	}
	cmd.Println()
}
