package util

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gosuri/uilive"
)

// TerminalPrinter redraws a fixed set of status lines in place every
// frequency until stopped.
type TerminalPrinter struct {
	lines     []*StatusLine
	frequency time.Duration
	doneCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	writer  *uilive.Writer
	writers []io.Writer
}

func NewTerminalPrinter(out io.Writer, frequency time.Duration) *TerminalPrinter {
	w := uilive.New()
	w.Out = out
	return &TerminalPrinter{
		lines:     make([]*StatusLine, 0),
		frequency: frequency,
		doneCh:    make(chan struct{}),
		writer:    w,
		writers:   make([]io.Writer, 0),
	}
}

// NewLine adds a status line. All lines must be added before Start.
func (t *TerminalPrinter) NewLine() *StatusLine {
	line := &StatusLine{}
	t.lines = append(t.lines, line)
	if len(t.lines) > 1 {
		t.writers = append(t.writers, t.writer.Newline())
	} else {
		t.writers = append(t.writers, t.writer)
	}
	return line
}

func (t *TerminalPrinter) Start(ctx context.Context) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.frequency)
		defer ticker.Stop()
		for {
			select {
			case <-t.doneCh:
				t.print()
				return
			case <-ctx.Done():
				t.print()
				return
			case <-ticker.C:
				t.print()
			}
		}
	}()
}

// Stop prints the lines one last time and waits for the printer to exit.
func (t *TerminalPrinter) Stop() {
	t.stopOnce.Do(func() {
		close(t.doneCh)
	})
	t.wg.Wait()
}

func (t *TerminalPrinter) print() {
	for i, line := range t.lines {
		fmt.Fprintln(t.writers[i], line.Get())
	}
	t.writer.Flush()
}

// StatusLine is a string shared between a producer and the printer.
type StatusLine struct {
	mu   sync.Mutex
	text string
}

func (s *StatusLine) Set(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
}

func (s *StatusLine) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}
