package gate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// HuhPrompter asks on a terminal with a huh confirm form.
type HuhPrompter struct{}

func (HuhPrompter) Confirm(ctx context.Context, req Request) (bool, error) {
	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(req.Title).
				Description(req.Detail).
				Affirmative("Approve").
				Negative("Reject").
				Value(&confirmed),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return confirmed, nil
}

// LinePrompter reads one line and accepts only an exact "yes".
type LinePrompter struct {
	In  io.Reader
	Out io.Writer

	mu     sync.Mutex
	reader *bufio.Reader
	// pending is a read left running by a cancelled Confirm. The next
	// Confirm takes it over so only one reader ever touches the stream.
	pending chan lineResult
}

// NewLinePrompter creates a LinePrompter over the given streams.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{In: in, Out: out, reader: bufio.NewReader(in)}
}

type lineResult struct {
	line string
	err  error
}

func (p *LinePrompter) Confirm(ctx context.Context, req Request) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	fmt.Fprintf(p.Out, "\n%s\n", req.Title)
	if req.Detail != "" {
		fmt.Fprintf(p.Out, "%s\n", req.Detail)
	}
	fmt.Fprint(p.Out, "  Only 'yes' will be accepted to approve.\n\n  Enter a value: ")

	ch := p.pending
	p.pending = nil
	if ch == nil {
		ch = make(chan lineResult, 1)
		go func(r *bufio.Reader) {
			line, err := r.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}(p.reader)
	}

	select {
	case <-ctx.Done():
		p.pending = ch
		return false, ctx.Err()
	case r := <-ch:
		if r.err != nil && !(errors.Is(r.err, io.EOF) && r.line != "") {
			return false, fmt.Errorf("reading confirmation: %w", r.err)
		}
		return strings.TrimSpace(r.line) == "yes", nil
	}
}

// DenyPrompter rejects everything. It is used when no operator can answer.
type DenyPrompter struct{}

func (DenyPrompter) Confirm(context.Context, Request) (bool, error) {
	return false, nil
}

// DefaultPrompter picks a prompter for the process: a form on a terminal, a
// line reader when stdin is piped, and rejection when nonInteractive is set.
func DefaultPrompter(nonInteractive bool) Prompter {
	if nonInteractive {
		return DenyPrompter{}
	}
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return HuhPrompter{}
	}
	return NewLinePrompter(os.Stdin, os.Stderr)
}
