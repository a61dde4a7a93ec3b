package engine

import (
	"context"
	"os"
	"strings"
	"sync"

	"stackctl/internal/utils"
)

type runFunc func(cmd utils.Command) (utils.Result, error)

// mockRunner answers commands by terraform subcommand and records every call.
type mockRunner struct {
	mu       sync.Mutex
	handlers map[string]runFunc
	calls    []utils.Command
}

func newMockRunner() *mockRunner {
	return &mockRunner{handlers: make(map[string]runFunc)}
}

func (m *mockRunner) on(sub string, fn runFunc) *mockRunner {
	m.handlers[sub] = fn
	return m
}

func (m *mockRunner) Run(ctx context.Context, cmd utils.Command) (utils.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, cmd)
	fn := m.handlers[cmd.Args[0]]
	m.mu.Unlock()
	if fn == nil {
		return utils.Result{}, nil
	}
	return fn(cmd)
}

func (m *mockRunner) subcommands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		out = append(out, c.Args[0])
	}
	return out
}

func (m *mockRunner) last(sub string) (utils.Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].Args[0] == sub {
			return m.calls[i], true
		}
	}
	return utils.Command{}, false
}

// writesPlan emulates terraform plan writing its -out file.
func writesPlan(exitCode int) runFunc {
	return func(cmd utils.Command) (utils.Result, error) {
		for _, a := range cmd.Args {
			if out, ok := strings.CutPrefix(a, "-out="); ok {
				if err := os.WriteFile(out, []byte("binary plan"), 0600); err != nil {
					return utils.Result{}, err
				}
			}
		}
		res := utils.Result{ExitCode: exitCode}
		if exitCode != 0 {
			return res, &utils.CommandError{Command: cmd.String(), ExitCode: exitCode}
		}
		return res, nil
	}
}

func stdout(s string) runFunc {
	return func(utils.Command) (utils.Result, error) {
		return utils.Result{Stdout: s}, nil
	}
}
