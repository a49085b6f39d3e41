package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/diveops-backend/internal/app"
	"github.com/yungbote/diveops-backend/internal/modules/content/generation"
	"github.com/yungbote/diveops-backend/internal/modules/integrity"
)

var (
	timeout time.Duration

	autoRepair      bool
	regenerateMedia bool
	sendAlerts      bool
)

// errUnhealthy makes the process exit non-zero after the result was printed.
var errUnhealthy = errors.New("unhealthy result")

var rootCmd = &cobra.Command{
	Use:           "contentctl",
	Short:         "Run content generation and integrity audits from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run one integrity audit and print the summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			summary, err := a.Services.Auditor.Run(ctx, integrity.Options{
				AutoRepair:      autoRepair,
				RegenerateMedia: regenerateMedia,
				SendAlerts:      sendAlerts,
				Trigger:         integrity.TriggerCLI,
			})
			if err != nil {
				return err
			}
			if err := printJSON(summary); err != nil {
				return err
			}
			if !summary.OK {
				return errUnhealthy
			}
			return nil
		})
	},
}

var podcastCmd = &cobra.Command{
	Use:   "podcast <lessonId>",
	Short: "Generate the narrated podcast for one lesson",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			res, err := a.Services.Podcasts.Generate(ctx, ids[0], generation.SourceCLI)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var pdfCmd = &cobra.Command{
	Use:   "pdf <lessonId>...",
	Short: "Generate the PDF deck for one or more lessons",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			if len(ids) == 1 {
				res, err := a.Services.Decks.Generate(ctx, ids[0], generation.SourceCLI)
				if err != nil {
					return err
				}
				return printJSON(res)
			}
			res := a.Services.Decks.GenerateBatch(ctx, ids, generation.SourceCLI)
			if err := printJSON(res); err != nil {
				return err
			}
			if res.Failed > 0 {
				return errUnhealthy
			}
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "Operation timeout")

	auditCmd.Flags().BoolVar(&autoRepair, "repair", true, "Restore drifted tracks and rebuild unhealthy quizzes")
	auditCmd.Flags().BoolVar(&regenerateMedia, "regenerate", false, "Regenerate missing podcasts and PDFs")
	auditCmd.Flags().BoolVar(&sendAlerts, "alerts", false, "Post issues to the alert webhook")

	rootCmd.AddCommand(auditCmd, podcastCmd, pdfCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errUnhealthy) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func withApp(parent context.Context, fn func(context.Context, *app.App) error) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	a, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, raw := range args {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid lesson id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
