package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/silicakes/deluge-extensions-sub001/pkg/utils"
)

// Spinner represents a progress spinner for operations without a known
// total, like a full directory walk.
type Spinner struct {
	mu         sync.Mutex
	writer     io.Writer
	frames     []string
	frameIndex int
	message    string
	running    bool
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

// NewSpinner creates a new spinner with default frames.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		writer:  os.Stdout,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		message: message,
	}
}

// SetWriter sets a custom writer for the spinner.
func (s *Spinner) SetWriter(w io.Writer) {
	s.writer = w
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.animate()
}

// Stop stops the spinner animation.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	// Clear the line
	fmt.Fprint(s.writer, "\r\033[K")
}

// SetMessage updates the spinner message.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

func (s *Spinner) animate() {
	defer s.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.running {
				s.mu.Unlock()
				return
			}
			frame := s.frames[s.frameIndex%len(s.frames)]
			message := s.message
			s.frameIndex++
			s.mu.Unlock()

			fmt.Fprintf(s.writer, "\r%s %s", frame, message)
		}
	}
}

// TransferBar renders chunked-transfer progress in bytes.
type TransferBar struct {
	mu      sync.Mutex
	writer  io.Writer
	width   int
	current int64
	total   int64
	message string
}

// NewTransferBar creates a byte-count progress bar.
func NewTransferBar(total int64, message string) *TransferBar {
	return &TransferBar{
		writer:  os.Stdout,
		width:   40,
		total:   total,
		message: message,
	}
}

// SetWriter sets a custom writer.
func (pb *TransferBar) SetWriter(w io.Writer) {
	pb.writer = w
}

// Update redraws the bar at the given byte count.
func (pb *TransferBar) Update(current int64) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pb.current = current
	if pb.total <= 0 {
		return
	}

	percent := float64(current) / float64(pb.total)
	filled := int(percent * float64(pb.width))
	if filled > pb.width {
		filled = pb.width
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", pb.width-filled)
	fmt.Fprintf(pb.writer, "\r%s [%s] %3.0f%% (%s/%s)", pb.message, bar, percent*100,
		utils.FormatBytes(current), utils.FormatBytes(pb.total))
}

// Finish completes the bar and moves to the next line.
func (pb *TransferBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pb.current = pb.total
	bar := strings.Repeat("█", pb.width)
	fmt.Fprintf(pb.writer, "\r%s [%s] 100%% (%s)\n", pb.message, bar, utils.FormatBytes(pb.total))
}

// WithSpinner wraps a function with a spinner.
func WithSpinner(message string, fn func() error) error {
	spinner := NewSpinner(message)
	spinner.Start()
	err := fn()
	spinner.Stop()
	return err
}
