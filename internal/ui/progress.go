package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Spinner is an animated indicator shown while a pipeline run is in flight.
type Spinner struct {
	frames    []string
	current   int
	message   string
	startTime time.Time
	stop      chan struct{}
	done      chan struct{}
	stopped   bool
	mu        sync.Mutex
}

// NewSpinner creates a new spinner
func NewSpinner(message string) *Spinner {
	return &Spinner{
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins the spinner animation
func (s *Spinner) Start() {
	s.mu.Lock()
	s.startTime = time.Now()
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				if !s.stopped {
					fmt.Fprintf(stdout, "\r%s %s %s",
						ColorProgress(s.frames[s.current]),
						s.message,
						strings.Repeat(" ", 20),
					)
					s.current = (s.current + 1) % len(s.frames)
				}
				s.mu.Unlock()
			}
		}
	}()
}

// Stop ends the animation and prints the final status with the elapsed time.
// Calling Stop more than once is a no-op.
func (s *Spinner) Stop(success bool, message string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.startTime
	s.mu.Unlock()

	close(s.stop)
	if !started.IsZero() {
		<-s.done
	}

	fmt.Fprint(stdout, "\r\033[K")

	elapsed := ""
	if !started.IsZero() {
		elapsed = " " + ColorDim("("+formatDuration(time.Since(started))+")")
	}
	if success {
		fmt.Fprintf(stdout, "%s %s%s\n", ColorSuccess("✓"), message, elapsed)
	} else {
		fmt.Fprintf(stdout, "%s %s%s\n", ColorError("✗"), message, elapsed)
	}
}

// UpdateMessage updates the spinner message
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, minutes)
}
