// Package cliui holds terminal output helpers for spyre commands: key/value
// styles, a progress spinner for batch runs and markdown rendering of answers.
package cliui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	KeyStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

const frameInterval = 80 * time.Millisecond

// Task is a unit of CLI work. The returned detail (e.g. "2 of 3 kept") is
// printed after the mark when non-empty.
type Task func() (detail string, err error)

// Progress runs task and reports it on w as one line:
//
//	✓ Classifying 3 blocks  2 of 3 kept (12ms)
//
// When animate is set a spinner is drawn on w until the task returns.
func Progress(w io.Writer, msg string, animate bool, task Task) error {
	var (
		mu   sync.Mutex
		done = make(chan struct{})
		wg   sync.WaitGroup
	)

	if animate {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(frameInterval)
			defer ticker.Stop()

			for frame := 0; ; frame++ {
				mu.Lock()
				fmt.Fprintf(w, "\r  %s %s", spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), msg)
				mu.Unlock()

				select {
				case <-done:
					return
				case <-ticker.C:
				}
			}
		}()
	}

	start := time.Now()
	detail, err := task()
	elapsed := time.Since(start)

	close(done)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if animate {
		fmt.Fprint(w, "\r")
	}
	fmt.Fprint(w, Line(err, msg, detail, elapsed))
	return err
}

// Line formats a finished task.
func Line(err error, msg, detail string, elapsed time.Duration) string {
	if err != nil {
		detail = err.Error()
	}
	if detail != "" {
		msg += "  " + ValueStyle.Render(detail)
	}
	return fmt.Sprintf("  %s %s %s\n", Mark(err), msg, DimStyle.Render("("+FormatDuration(elapsed)+")"))
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// Width returns the column count of the terminal behind w, or 0 when w is
// not a terminal.
func Width(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	cols, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return cols
}

// RenderMarkdown renders a model answer for the terminal, wrapped at width
// columns. On failure the content is returned unchanged with the error.
func RenderMarkdown(content string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}
