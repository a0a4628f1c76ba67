package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/nao1215/qcsv"
	"github.com/nao1215/qcsv/domain/model"
	"github.com/nao1215/qcsv/internal/config"
	"github.com/nao1215/qcsv/internal/render"
)

// Exit codes
const (
	ExitOK           = 0
	ExitError        = 1
	ExitUsage        = 2
	ExitFileNotFound = 3
	ExitTemplate     = 4
)

type exitCoder interface {
	ExitCode() int
}

// exitError carries the exit status of a failed run
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) ExitCode() int { return e.code }
func (e *exitError) Unwrap() error { return e.err }

// newExitError classifies err by the exit code it maps to
func newExitError(err error) error {
	return &exitError{code: exitCodeFor(err), err: err}
}

func usageError(err error) error {
	return &exitError{code: ExitUsage, err: err}
}

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, qcsv.ErrFileNotFound):
		return ExitFileNotFound
	case errors.Is(err, qcsv.ErrQueryTemplate):
		return ExitTemplate
	case errors.Is(err, model.ErrInvalidRequest),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, render.ErrUnknownFormat):
		return ExitUsage
	default:
		return ExitError
	}
}

// isTerminal reports whether w is a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printError writes a single "Error: ..." line, red on a terminal.
func printError(w io.Writer, err error, code int) {
	msg := strings.Join(strings.Fields(err.Error()), " ")
	if msg == "" {
		msg = "error"
	}

	c := color.New(color.FgRed, color.Bold)
	if isTerminal(w) {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	_, _ = c.Fprintf(w, "Error: %s\n", msg)

	if code == ExitUsage {
		_, _ = fmt.Fprintln(w, "Run 'qcsv --help' for usage.")
	}
}
