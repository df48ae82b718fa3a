package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"captioner/internal/config"
	"captioner/internal/deps"
	"captioner/internal/transcription"
)

// CheckDirectoryAccess reports whether path is a directory the process can
// list, read, and write.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the configured pipeline
// shells out to. Both the daemon and the CLI use this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		deps.FFmpegRequirement(cfg.FFmpegBinary()),
		deps.FFprobeRequirement(cfg.FFprobeBinary()),
	}
	if cfg.Transcription.Backend == "whisperx" {
		requirements = append(requirements, transcription.UVXRequirement())
	}
	return deps.CheckBinaries(requirements)
}
