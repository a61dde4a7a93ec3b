// Package prereq verifies that required tools and credentials are present
// before anything else runs. It performs no mutation.
package prereq

import (
	"context"
	"fmt"
	"strings"

	"stackctl/internal/utils"
	"stackctl/pkg/logging"
)

// Kind of dependency that was found missing.
type Kind string

const (
	KindTool       Kind = "tool"
	KindCredential Kind = "credential"
)

// MissingError names the first unsatisfied dependency.
type MissingError struct {
	Kind       Kind
	Dependency string
	Err        error
}

func (e *MissingError) Error() string {
	switch e.Kind {
	case KindCredential:
		return fmt.Sprintf("credentials are not valid (%s): %v", e.Dependency, e.Err)
	default:
		return fmt.Sprintf("required tool %q not found: %v", e.Dependency, e.Err)
	}
}

func (e *MissingError) Unwrap() error { return e.Err }

// Checker is the PrerequisiteChecker.
type Checker struct {
	Tools             []string
	CredentialCommand []string
	Runner            utils.Runner
}

// Check tests every tool in declaration order, then the credentials, and
// returns at the first failure.
func (c *Checker) Check(ctx context.Context) error {
	for _, tool := range c.Tools {
		path, err := utils.LookPath(tool)
		if err != nil {
			return &MissingError{Kind: KindTool, Dependency: tool, Err: err}
		}
		logging.Debug("Prerequisites", "Found %s at %s", tool, path)
	}

	if len(c.CredentialCommand) == 0 {
		return nil
	}
	cmdline := strings.Join(c.CredentialCommand, " ")
	_, err := c.Runner.Run(ctx, utils.Command{Name: c.CredentialCommand[0], Args: c.CredentialCommand[1:]})
	if err != nil {
		return &MissingError{Kind: KindCredential, Dependency: cmdline, Err: err}
	}
	logging.Debug("Prerequisites", "Credentials valid (%s)", cmdline)
	return nil
}
