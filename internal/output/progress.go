package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// writerIsTTY reports whether w is a file descriptor attached to a terminal.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// ProgressBar tracks a fixed number of steps, e.g. the releases of a plan.
//
//	[==========>         ]  2/4 ValheimModding-Jotunn
//
// On a terminal the bar redraws in place. Elsewhere one line is written per
// step so logs stay readable.
type ProgressBar struct {
	mu      sync.Mutex
	w       io.Writer
	total   int
	current int
	width   int
	label   string
}

// NewProgress creates a progress bar writing to stdout.
func NewProgress(total int) *ProgressBar {
	return &ProgressBar{w: os.Stdout, total: total, width: 30}
}

// SetWriter sets the output writer.
func (p *ProgressBar) SetWriter(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.w = w
}

// Step sets the progress to done and redraws with the given label.
func (p *ProgressBar) Step(done int, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if done > p.total {
		done = p.total
	}
	p.current = done
	p.label = label

	if writerIsTTY(p.w) {
		fmt.Fprintf(p.w, "\r\033[K%s", p.line())
		return
	}
	fmt.Fprintln(p.w, p.line())
}

// Finish ends the bar's line on a terminal.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if writerIsTTY(p.w) {
		fmt.Fprintln(p.w)
	}
}

// line renders the bar. Must be called with the lock held.
func (p *ProgressBar) line() string {
	filled := 0
	if p.total > 0 {
		filled = p.current * p.width / p.total
	}

	var bar strings.Builder
	bar.WriteString("[")
	for i := 0; i < p.width; i++ {
		switch {
		case i < filled-1:
			bar.WriteString("=")
		case i == filled-1:
			bar.WriteString(">")
		default:
			bar.WriteString(" ")
		}
	}
	bar.WriteString("]")

	digits := len(fmt.Sprint(p.total))
	return fmt.Sprintf("%s %*d/%d %s", bar.String(), digits, p.current, p.total, p.label)
}

// Spinner shows that a blocking call is in flight.
type Spinner struct {
	mu      sync.Mutex
	w       io.Writer
	message string
	frames  []string
	started time.Time
	stop    chan struct{}
	done    sync.WaitGroup
	running bool
}

// NewSpinner creates a spinner writing to stdout.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		w:       os.Stdout,
		message: message,
		frames:  []string{"|", "/", "-", "\\"},
	}
}

// SetWriter sets the output writer. Must be called before Start.
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

// Start begins the animation. On a non-terminal writer the message is
// printed once instead.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.started = time.Now()

	if !writerIsTTY(s.w) {
		fmt.Fprintf(s.w, "%s...\n", s.message)
		return
	}

	s.stop = make(chan struct{})
	s.done.Add(1)
	go s.animate()
}

func (s *Spinner) animate() {
	defer s.done.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			elapsed := int(time.Since(s.started).Seconds())
			fmt.Fprintf(s.w, "\r%s  %s (%ds)", s.frames[i%len(s.frames)], s.message, elapsed)
			s.mu.Unlock()
		}
	}
}

// Stop ends the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop := s.stop
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	s.done.Wait()
	fmt.Fprint(s.w, "\r\033[K")
}

// StopWithMessage stops the spinner and prints a final line.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	fmt.Fprintln(s.w, message)
}
