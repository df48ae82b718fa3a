package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"captioner/internal/bootstrap"
	"captioner/internal/captions"
	"captioner/internal/subtitles"
	"captioner/internal/workflow"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var format string
	var jobID string

	cmd := &cobra.Command{
		Use:   "transcribe <video>",
		Short: "Generate a caption timeline for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoPath, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve video path: %w", err)
			}
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "json" && format != "srt" {
				return fmt.Errorf("unsupported format %q (use json or srt)", format)
			}
			if strings.TrimSpace(jobID) == "" {
				jobID = uuid.NewString()
			}

			return ctx.withServices(cmd.Context(), func(svc *bootstrap.Services) error {
				timeline, err := svc.Captions.Run(cmd.Context(), workflow.CaptionRequest{
					JobID:      jobID,
					VideoPath:  videoPath,
					PublicPath: videoPath,
				})
				if err != nil {
					return err
				}
				return writeTimeline(cmd, timeline, format, outputPath)
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write captions to this file instead of stdout")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or srt")
	cmd.Flags().StringVar(&jobID, "job", "", "Job identifier used in events (generated when empty)")
	return cmd
}

func writeTimeline(cmd *cobra.Command, timeline captions.Timeline, format, outputPath string) error {
	var w io.Writer = cmd.OutOrStdout()
	if path := strings.TrimSpace(outputPath); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		w = file
	}
	if format == "srt" {
		return subtitles.RenderSRT(w, timeline)
	}
	return captions.Encode(w, timeline)
}
