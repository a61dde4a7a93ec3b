// Package gate implements the confirmation checkpoints that guard every
// mutating or destructive operation. Each guarded operation has its own gate
// ID; an approval for one gate never satisfies another.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"stackctl/pkg/logging"
)

// ID names a gate.
type ID string

const (
	Apply           ID = "apply"
	NamespaceDelete ID = "namespace-delete"
	Destroy         ID = "destroy"
)

// All lists every gate.
var All = []ID{Apply, NamespaceDelete, Destroy}

// ParseID validates a gate name from the command line.
func ParseID(s string) (ID, error) {
	for _, id := range All {
		if string(id) == s {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown gate %q (want apply, namespace-delete or destroy)", s)
}

// ErrDeclined is returned when a gate rejects its operation.
var ErrDeclined = errors.New("operation declined")

// Request is what the operator is asked to approve.
type Request struct {
	Gate   ID
	Title  string
	Detail string
}

// Prompter asks for a binary accept or reject.
type Prompter interface {
	Confirm(ctx context.Context, req Request) (bool, error)
}

// Tokens are pre-authorised, single-use approvals.
type Tokens struct {
	mu      sync.Mutex
	pending map[ID]int
}

// NewTokens grants one approval per listed gate. autoApprove grants one for
// every gate.
func NewTokens(autoApprove bool, gates ...ID) *Tokens {
	t := &Tokens{pending: make(map[ID]int)}
	if autoApprove {
		gates = append(gates, All...)
	}
	for _, g := range gates {
		t.pending[g] = 1
	}
	return t
}

// Take consumes the token for id, if one exists.
func (t *Tokens) Take(id ID) bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending[id] == 0 {
		return false
	}
	t.pending[id]--
	return true
}

// Gate is the ConfirmationGate. It blocks until a decision is made; there is
// no timeout.
type Gate struct {
	Tokens   *Tokens
	Prompter Prompter
}

// Await returns nil when the request is accepted and an error wrapping
// ErrDeclined otherwise.
func (g *Gate) Await(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeclined, err)
	}
	if g.Tokens.Take(req.Gate) {
		logging.Info("Gate", "Gate %s approved by pre-authorised token", req.Gate)
		return nil
	}
	if g.Prompter == nil {
		return fmt.Errorf("%w: no prompter for gate %s", ErrDeclined, req.Gate)
	}

	ok, err := g.Prompter.Confirm(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeclined, err)
	}
	if !ok {
		logging.Warn("Gate", "Gate %s rejected", req.Gate)
		return fmt.Errorf("%w at gate %s", ErrDeclined, req.Gate)
	}
	logging.Info("Gate", "Gate %s approved", req.Gate)
	return nil
}
