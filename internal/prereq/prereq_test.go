package prereq

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"stackctl/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	err   error
	calls []utils.Command
}

func (m *mockRunner) Run(_ context.Context, cmd utils.Command) (utils.Result, error) {
	m.calls = append(m.calls, cmd)
	return utils.Result{}, m.err
}

func withLookPath(t *testing.T, present ...string) {
	t.Helper()
	orig := utils.LookPath
	t.Cleanup(func() { utils.LookPath = orig })
	utils.LookPath = func(name string) (string, error) {
		for _, p := range present {
			if p == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", exec.ErrNotFound
	}
}

func TestCheck(t *testing.T) {
	credential := []string{"aws", "sts", "get-caller-identity"}

	tests := []struct {
		name        string
		present     []string
		credErr     error
		wantDep     string
		wantKind    Kind
		wantCredRun bool
	}{
		{
			name:        "all present",
			present:     []string{"terraform", "aws"},
			wantCredRun: true,
		},
		{
			name:     "first missing tool is reported",
			present:  []string{"aws"},
			wantDep:  "terraform",
			wantKind: KindTool,
		},
		{
			name:     "second tool missing",
			present:  []string{"terraform"},
			wantDep:  "aws",
			wantKind: KindTool,
		},
		{
			name:        "invalid credentials",
			present:     []string{"terraform", "aws"},
			credErr:     errors.New("ExpiredToken"),
			wantDep:     "aws sts get-caller-identity",
			wantKind:    KindCredential,
			wantCredRun: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withLookPath(t, tt.present...)
			r := &mockRunner{err: tt.credErr}
			c := &Checker{Tools: []string{"terraform", "aws"}, CredentialCommand: credential, Runner: r}

			err := c.Check(context.Background())
			assert.Equal(t, tt.wantCredRun, len(r.calls) == 1)
			if tt.wantDep == "" {
				assert.NoError(t, err)
				return
			}
			var missing *MissingError
			require.True(t, errors.As(err, &missing))
			assert.Equal(t, tt.wantDep, missing.Dependency)
			assert.Equal(t, tt.wantKind, missing.Kind)
		})
	}
}

func TestCheck_NoCredentialCommand(t *testing.T) {
	withLookPath(t, "terraform")
	r := &mockRunner{}
	c := &Checker{Tools: []string{"terraform"}, Runner: r}
	assert.NoError(t, c.Check(context.Background()))
	assert.Empty(t, r.calls)
}
