package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	dsio "github.com/matzehuels/domainstack/pkg/io"
	"github.com/matzehuels/domainstack/pkg/observability"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner draws a progress line on stderr while a run samples and places
// layers. When tracking it counts completed selections through the
// pipeline hooks.
type Spinner struct {
	w     io.Writer
	start time.Time
	total int
	done  atomic.Int64

	mu      sync.Mutex
	message string
	width   int

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once

	next observability.PipelineHooks
}

func newSpinner(message string) *Spinner {
	return newSpinnerWithContext(context.Background(), message, 0)
}

// newSpinnerWithContext returns a spinner that stops drawing when ctx ends.
// total is the number of selections to count; zero hides the counter.
func newSpinnerWithContext(ctx context.Context, message string, total int) *Spinner {
	ctx, cancel := context.WithCancel(ctx)
	return &Spinner{
		w:       os.Stderr,
		start:   time.Now(),
		total:   total,
		message: message,
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
}

// sampleTotal returns the number of selections a run of desc samples, or
// zero when timeseries make it unknown before file discovery.
func sampleTotal(desc *dsio.Description) int {
	if len(desc.Timeseries) > 0 {
		return 0
	}
	return desc.Samples()
}

// Start begins drawing.
func (s *Spinner) Start() {
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.draw(spinnerFrames[i%len(spinnerFrames)])
			}
		}
	}()
}

// Track installs s as the pipeline hooks, forwarding to the previous ones,
// and returns a func that restores them.
func (s *Spinner) Track() (restore func()) {
	s.next = observability.Pipeline()
	observability.SetPipelineHooks(s)
	return func() { observability.SetPipelineHooks(s.next) }
}

// OnSampleStart implements observability.PipelineHooks.
func (s *Spinner) OnSampleStart(ctx context.Context, dataset string, selections int) {
	s.next.OnSampleStart(ctx, dataset, selections)
}

// OnSampleComplete implements observability.PipelineHooks.
func (s *Spinner) OnSampleComplete(ctx context.Context, dataset string, layers int, d time.Duration, err error) {
	if err == nil {
		s.done.Add(1)
	}
	s.next.OnSampleComplete(ctx, dataset, layers, d, err)
}

// OnAlignStart implements observability.PipelineHooks.
func (s *Spinner) OnAlignStart(ctx context.Context, mode string, layers int) {
	s.SetMessage(fmt.Sprintf("Placing %d layers (%s)...", layers, mode))
	s.next.OnAlignStart(ctx, mode, layers)
}

// OnAlignComplete implements observability.PipelineHooks.
func (s *Spinner) OnAlignComplete(ctx context.Context, mode string, d time.Duration, err error) {
	s.next.OnAlignComplete(ctx, mode, d, err)
}

// OnGroupComplete implements observability.PipelineHooks.
func (s *Spinner) OnGroupComplete(ctx context.Context, groups, samples int, d time.Duration) {
	s.next.OnGroupComplete(ctx, groups, samples, d)
}

// SetMessage replaces the message shown next to the spinner.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Sampled returns the number of selections counted so far.
func (s *Spinner) Sampled() int { return int(s.done.Load()) }

func (s *Spinner) line() string {
	s.mu.Lock()
	msg := s.message
	s.mu.Unlock()
	switch {
	case s.total > 0:
		msg += fmt.Sprintf(" [%d/%d]", s.Sampled(), s.total)
	case s.next != nil:
		msg += fmt.Sprintf(" [%d]", s.Sampled())
	}
	return msg + fmt.Sprintf(" %s", time.Since(s.start).Round(100*time.Millisecond))
}

func (s *Spinner) draw(frame string) {
	line := s.line()
	s.mu.Lock()
	defer s.mu.Unlock()
	// pad over whatever a longer previous line left behind
	pad := max(s.width-len(line), 0)
	s.width = len(line)
	fmt.Fprintf(s.w, "\r%s %s%s", styleIconSpinner.Render(frame), StyleDim.Render(line), strings.Repeat(" ", pad))
}

// Stop stops drawing and clears the line. Calling it again is a no-op.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		s.cancel()
		select {
		case <-s.stopped:
		case <-time.After(time.Second):
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.width+2))
	})
}

// StopWithError stops the spinner and prints message as an error.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	printError("%s", message)
}

// Cancelled reports whether the spinner's context ended.
func (s *Spinner) Cancelled() bool {
	return s.ctx.Err() != nil
}
