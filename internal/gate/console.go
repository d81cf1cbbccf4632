// Package gate implements the human approval channels behind request_approval.
package gate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"rea/internal/domain"
)

// ErrInputClosed is returned once the console input reaches EOF.
var ErrInputClosed = errors.New("approval input closed")

// Console asks for approval on a terminal. Requests from concurrent runs are
// serialised so prompts and answers never interleave.
type Console struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	mu       sync.Mutex // one request at a time
	start    sync.Once
	lines    chan string
	readErr  error
	readDone chan struct{}
}

type ConsoleConfig struct {
	In     io.Reader
	Out    io.Writer
	Logger *slog.Logger
}

func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Console{
		in:       cfg.In,
		out:      cfg.Out,
		logger:   cfg.Logger,
		lines:    make(chan string),
		readDone: make(chan struct{}),
	}
}

// reader feeds input lines to Request. It outlives cancelled requests, so a
// line typed after a cancellation goes to the next request.
func (c *Console) reader() {
	defer close(c.readDone)
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		c.lines <- scanner.Text()
	}
	c.readErr = scanner.Err()
}

// Request prints details and blocks for one line of input. The reply is
// returned with surrounding whitespace trimmed and is otherwise unvalidated.
func (c *Console) Request(ctx context.Context, details string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.start.Do(func() { go c.reader() })

	_, _ = fmt.Fprintln(c.out, "\n=== APPROVAL REQUIRED ===")
	_, _ = fmt.Fprintln(c.out, details)
	_, _ = fmt.Fprintln(c.out, "=========================")
	_, _ = fmt.Fprint(c.out, "Your response> ")

	select {
	case line := <-c.lines:
		c.logger.Debug("approval response received", "len", len(line))
		return strings.TrimSpace(line), nil
	case <-c.readDone:
		if c.readErr != nil {
			return "", &domain.HumanGateError{Err: fmt.Errorf("read approval: %w", c.readErr)}
		}
		return "", &domain.HumanGateError{Err: ErrInputClosed}
	case <-ctx.Done():
		_, _ = fmt.Fprintln(c.out)
		return "", ctx.Err()
	}
}

// Unavailable is the gate for headless runs: every request fails.
type Unavailable struct{}

func (Unavailable) Request(ctx context.Context, details string) (string, error) {
	return "", &domain.HumanGateError{Err: errors.New("no approval channel available in this mode")}
}

var (
	_ domain.HumanGate = (*Console)(nil)
	_ domain.HumanGate = Unavailable{}
)
