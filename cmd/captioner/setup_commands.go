package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"captioner/internal/preflight"
)

func newCheckSetupCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check-setup",
		Short: "Report whether captioning prerequisites are in place",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := preflight.CheckSetup(cmd.Context(), cfg)
			if jsonOutput {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printSetupReport(cmd, report)
			}
			if !report.Ready {
				return errors.New("setup incomplete")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	return cmd
}

func printSetupReport(cmd *cobra.Command, report preflight.SetupReport) {
	out := cmd.OutOrStdout()
	rows := [][]string{
		{"ffmpeg", yesNo(report.Status.FFmpeg)},
		{"Google Cloud project", yesNo(report.Status.GoogleCloudProjectID)},
		{"Google Cloud bucket", yesNo(report.Status.GoogleCloudBucket)},
		{"Service account key", yesNo(report.Status.KeyJSON)},
	}
	if report.Status.UVX != nil {
		rows = append(rows, []string{"uvx", yesNo(*report.Status.UVX)})
	}
	fmt.Fprintf(out, "Backend: %s\n", report.Backend)
	fmt.Fprintln(out, renderTable([]string{"Requirement", "Ready"}, rows, nil))

	if len(report.Instructions) == 0 {
		fmt.Fprintln(out, "All prerequisites satisfied")
		return
	}
	keys := make([]string, 0, len(report.Instructions))
	for key := range report.Instructions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fmt.Fprintln(out, "To finish setup:")
	for _, key := range keys {
		fmt.Fprintf(out, "  - %s\n", report.Instructions[key])
	}
}

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check directories, the progress store, and system dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			rows := make([][]string, 0, len(results))
			for _, result := range results {
				status := "ok"
				if !result.Passed {
					status = "FAIL"
				}
				rows = append(rows, []string{result.Name, status, result.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Status", "Detail"}, rows, nil))

			failed := preflight.Failed(results)
			if len(failed) == 0 {
				return nil
			}
			names := make([]string, 0, len(failed))
			for _, result := range failed {
				names = append(names, result.Name)
			}
			return fmt.Errorf("preflight failed: %s", strings.Join(names, ", "))
		},
	}
}
