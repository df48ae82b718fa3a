package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"captioner/internal/progress"
	"captioner/internal/watch"
)

type progressFlags struct {
	jobID  string
	apiURL string
	local  bool
}

func (f *progressFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.jobID, "job", "", "Job identifier (latest job when empty)")
	cmd.Flags().StringVar(&f.apiURL, "api", "", "Daemon base URL (defaults to api_bind)")
	cmd.Flags().BoolVar(&f.local, "local", false, "Read the progress store directly instead of the daemon API")
}

// source returns the progress source and a release function.
func (f *progressFlags) source(ctx *commandContext) (watch.Source, func(), error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	if f.local {
		store, err := progress.Open(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open progress store: %w", err)
		}
		logger, err := ctx.logger(cfg)
		if err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("init logger: %w", err)
		}
		tracker := progress.NewTracker(store, logger, progress.Options{Retention: cfg.ProgressRetention()})
		return watch.TrackerSource{Tracker: tracker}, func() { tracker.Close() }, nil
	}
	base, err := ctx.apiBaseURL(f.apiURL)
	if err != nil {
		return nil, nil, err
	}
	return watch.NewHTTPSource(base, cfg.Paths.APIToken), func() {}, nil
}

func newProgressCommand(ctx *commandContext) *cobra.Command {
	var flags progressFlags
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show render progress for a job",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, release, err := flags.source(ctx)
			if err != nil {
				return err
			}
			defer release()

			value, err := source.Progress(cmd.Context(), flags.jobID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, map[string]float64{"progress": value})
			}
			label := strings.TrimSpace(flags.jobID)
			if label == "" {
				label = "latest"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %.1f%%\n", label, value)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print progress as JSON")
	return cmd
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var flags progressFlags
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow render progress in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, release, err := flags.source(ctx)
			if err != nil {
				return err
			}
			defer release()

			final, err := watch.Run(source, flags.jobID, watch.WithInterval(interval))
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			if final.Err != nil && !final.Done {
				return final.Err
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "Poll interval")
	return cmd
}
