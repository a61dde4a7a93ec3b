// Package workspace prepares the local working state before any plan is
// computed: it makes sure the variable file exists, initialises the engine
// once, and loads the variables.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"stackctl/internal/engine"
	"stackctl/internal/variables"
	"stackctl/pkg/logging"
)

// ErrAlreadyInitialized is reported as a warning when init was skipped.
var ErrAlreadyInitialized = errors.New("working directory already initialized, skipping init")

// ConfigurationAbsentError halts the run until the operator edits the
// variable file.
type ConfigurationAbsentError struct {
	Path     string
	Template string
	Seeded   bool
}

func (e *ConfigurationAbsentError) Error() string {
	if e.Seeded {
		return fmt.Sprintf("variable file %s was missing and has been created from %s; edit it and re-run", e.Path, e.Template)
	}
	return fmt.Sprintf("variable file %s is missing and no template is available", e.Path)
}

// Workspace is the ResourceGraphInitializer.
type Workspace struct {
	Engine       engine.Engine
	VarsFile     string
	VarsTemplate string
}

// Result is the outcome of Prepare. Warning is set when a step was skipped.
type Result struct {
	Vars    *variables.Set
	Warning error
}

// Prepare is idempotent. It fails closed when the variable file is missing.
func (w *Workspace) Prepare(ctx context.Context) (*Result, error) {
	if _, err := os.Stat(w.VarsFile); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("checking variable file: %w", err)
		}
		seeded, seedErr := seed(w.VarsTemplate, w.VarsFile)
		if seedErr != nil {
			return nil, fmt.Errorf("seeding %s from %s: %w", w.VarsFile, w.VarsTemplate, seedErr)
		}
		if seeded {
			logging.Warn("Workspace", "Created %s from template %s", w.VarsFile, w.VarsTemplate)
		}
		return nil, &ConfigurationAbsentError{Path: w.VarsFile, Template: w.VarsTemplate, Seeded: seeded}
	}

	res := &Result{}
	if w.Engine.Initialized() {
		logging.Warn("Workspace", "%v", ErrAlreadyInitialized)
		res.Warning = ErrAlreadyInitialized
	} else if err := w.Engine.Init(ctx); err != nil {
		return nil, err
	}

	vars, err := variables.Load(w.VarsFile)
	if err != nil {
		return nil, err
	}
	res.Vars = vars
	return res, nil
}

// seed copies template to dst without ever overwriting dst. It returns false
// when there is no template.
func seed(template, dst string) (bool, error) {
	if template == "" {
		return false, nil
	}
	src, err := os.Open(template)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return false, err
	}
	_, err = io.Copy(out, src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// A partial copy would later pass for a real configuration.
		os.Remove(dst)
		return false, err
	}
	return true, nil
}
