package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"captioner/internal/bootstrap"
	"captioner/internal/captions"
	"captioner/internal/workflow"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var videoPath string
	var captionsPath string
	var style string
	var jobID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Burn a caption timeline into a video",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(videoPath) == "" || strings.TrimSpace(captionsPath) == "" {
				return fmt.Errorf("--video and --captions are required")
			}
			timeline, err := captions.DecodeFile(captionsPath)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			return ctx.withServices(cmd.Context(), func(svc *bootstrap.Services) error {
				result, err := svc.Orchestrator.Render(cmd.Context(), workflow.RenderRequest{
					JobID:     jobID,
					VideoPath: publicRelative(cfg.Paths.PublicDir, videoPath),
					Captions:  timeline,
					Style:     style,
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Rendered %s\n", result.File)
				fmt.Fprintf(out, "Public path: %s\n", result.OutputPath)
				if result.PublishedURL != "" {
					fmt.Fprintf(out, "Published: %s\n", result.PublishedURL)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&videoPath, "video", "", "Source video, relative to the public directory or absolute within it")
	cmd.Flags().StringVar(&captionsPath, "captions", "", "Caption timeline file (.json or .yaml)")
	cmd.Flags().StringVar(&style, "style", "", "Caption style: bottom-centered, top-bar, or karaoke")
	cmd.Flags().StringVar(&jobID, "job", "", "Progress job identifier (generated when empty)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the render result as JSON")
	return cmd
}

// publicRelative maps an absolute path inside publicDir to the relative form
// render requests use. Anything else is passed through unchanged.
func publicRelative(publicDir, videoPath string) string {
	videoPath = strings.TrimSpace(videoPath)
	if !filepath.IsAbs(videoPath) || publicDir == "" {
		return videoPath
	}
	rel, err := filepath.Rel(publicDir, videoPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return videoPath
	}
	return filepath.ToSlash(rel)
}
