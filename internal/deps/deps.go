// Package deps checks for the external binaries captioner shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"captioner/internal/services"
)

// Requirement defines an external binary captioner relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// InstallHint is shown to the operator when the binary is missing.
	InstallHint string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	InstallHint string
	Optional    bool
	Available   bool
	// Path is the resolved executable location when available.
	Path   string
	Detail string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, checkBinary(req))
	}
	return results
}

func checkBinary(req Requirement) Status {
	cmd := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     cmd,
		Description: strings.TrimSpace(req.Description),
		InstallHint: strings.TrimSpace(req.InstallHint),
		Optional:    req.Optional,
	}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(cmd)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		return status
	}
	status.Available = true
	status.Path = resolved
	return status
}

// Require checks the requirements and returns a configuration error naming
// the first missing mandatory binary.
func Require(stage string, requirements ...Requirement) error {
	for _, status := range CheckBinaries(requirements) {
		if status.Available || status.Optional {
			continue
		}
		message := fmt.Sprintf("%s is required but %s", status.Name, status.Detail)
		if status.InstallHint != "" {
			message += "; " + status.InstallHint
		}
		return services.Wrap(services.ErrConfiguration, stage, "check dependencies", message, nil)
	}
	return nil
}
