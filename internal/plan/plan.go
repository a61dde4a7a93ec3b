// Package plan models the deployment plan artifact: an immutable diff
// between desired and live state that must be approved before it is
// consumed, and can be consumed only once.
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes apply plans from destroy plans.
type Kind string

const (
	KindApply   Kind = "apply"
	KindDestroy Kind = "destroy"
)

// Action is the change the engine intends for one resource.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionReplace Action = "replace"
	ActionRead    Action = "read"
	ActionNoop    Action = "no-op"
)

// Mutating reports whether the action changes live state.
func (a Action) Mutating() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionReplace:
		return true
	default:
		return false
	}
}

// ResourceChange is one entry of the plan.
type ResourceChange struct {
	Address       string
	ModuleAddress string
	Action        Action
}

var (
	ErrNotApproved     = errors.New("plan has not been approved")
	ErrAlreadyConsumed = errors.New("plan has already been consumed")
	ErrNotConsumed     = errors.New("plan has not been consumed")
	ErrModified        = errors.New("plan file changed after review")
	ErrDisposed        = errors.New("plan has been disposed")
	ErrDrift           = errors.New("plan contains changes that were not reviewed")
)

// Plan is a reviewed (or reviewable) plan file. Fields are read-only after
// New returns.
type Plan struct {
	ID        string
	Kind      Kind
	Path      string
	Digest    string
	Changes   []ResourceChange
	Targets   []string
	CreatedAt time.Time

	mu         sync.Mutex
	approvedBy string
	consumed   bool
	disposed   bool
}

// New wraps a freshly written plan file. The file's digest is recorded so a
// later Consume can detect modification.
func New(kind Kind, path string, changes []ResourceChange, targets []string) (*Plan, error) {
	digest, err := fileDigest(path)
	if err != nil {
		return nil, fmt.Errorf("failed to hash plan file %s: %w", path, err)
	}
	return &Plan{
		ID:        uuid.NewString(),
		Kind:      kind,
		Path:      path,
		Digest:    digest,
		Changes:   append([]ResourceChange(nil), changes...),
		Targets:   append([]string(nil), targets...),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// HasChanges reports whether applying the plan would mutate anything.
func (p *Plan) HasChanges() bool {
	for _, c := range p.Changes {
		if c.Action.Mutating() {
			return true
		}
	}
	return false
}

// Approve records acceptance by the named gate.
func (p *Plan) Approve(gate string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.approvedBy == "" {
		p.approvedBy = gate
	}
}

// ApprovedBy returns the gate that accepted the plan, if any.
func (p *Plan) ApprovedBy() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.approvedBy, p.approvedBy != ""
}

// Consumed reports whether Consume has succeeded.
func (p *Plan) Consumed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consumed
}

// Consume marks the plan as used. It succeeds exactly once, and only for an
// approved plan whose file is unchanged since review.
func (p *Plan) Consume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.disposed:
		return ErrDisposed
	case p.consumed:
		return ErrAlreadyConsumed
	case p.approvedBy == "":
		return ErrNotApproved
	}

	digest, err := fileDigest(p.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModified, err)
	}
	if digest != p.Digest {
		return ErrModified
	}
	p.consumed = true
	return nil
}

// Slice approves child as a part of this consumed plan. Every mutating change
// in child must appear, with the same action, in this plan.
func (p *Plan) Slice(child *Plan) error {
	p.mu.Lock()
	consumed, gate := p.consumed, p.approvedBy
	p.mu.Unlock()

	if !consumed {
		return ErrNotConsumed
	}
	if child.Kind != p.Kind {
		return fmt.Errorf("%w: %s plan cannot be a slice of a %s plan", ErrDrift, child.Kind, p.Kind)
	}

	reviewed := make(map[string]Action, len(p.Changes))
	for _, c := range p.Changes {
		reviewed[c.Address] = c.Action
	}
	for _, c := range child.Changes {
		if !c.Action.Mutating() {
			continue
		}
		if a, ok := reviewed[c.Address]; !ok || a != c.Action {
			return fmt.Errorf("%w: %s %s", ErrDrift, c.Action, c.Address)
		}
	}

	child.Approve(gate)
	return nil
}

// Dispose removes the plan file. A disposed plan cannot be consumed.
func (p *Plan) Dispose() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disposed = true
	if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Summary counts mutating changes per action.
type Summary struct {
	Create  int
	Update  int
	Delete  int
	Replace int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d to add, %d to change, %d to destroy, %d to replace", s.Create, s.Update, s.Delete, s.Replace)
}

// Total is the number of mutating changes.
func (s Summary) Total() int {
	return s.Create + s.Update + s.Delete + s.Replace
}

// Summary counts the plan's changes.
func (p *Plan) Summary() Summary {
	var s Summary
	for _, c := range p.Changes {
		switch c.Action {
		case ActionCreate:
			s.Create++
		case ActionUpdate:
			s.Update++
		case ActionDelete:
			s.Delete++
		case ActionReplace:
			s.Replace++
		}
	}
	return s
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
