package preflight

import (
	"context"

	"captioner/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Public directory", cfg.Paths.PublicDir),
		CheckDirectoryAccess("Upload directory", cfg.Paths.UploadDir),
		CheckDirectoryAccess("Render directory", cfg.Paths.RenderDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	results = append(results, CheckProgressStore(ctx, cfg))

	for _, status := range CheckSystemDeps(cfg) {
		detail := status.Detail
		if status.Available {
			detail = status.Path
		}
		results = append(results, Result{
			Name:   status.Name,
			Passed: status.Available || status.Optional,
			Detail: detail,
		})
	}
	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
