package logger

import (
	"io"
	"log"
	"os"

	"github.com/fatih/color"
)

// Log flags
const (
	LstdFlags     = log.LstdFlags
	Lmicroseconds = log.Lmicroseconds
)

// Logger wraps the standard log.Logger with additional functionality
type Logger struct {
	*log.Logger
	highlight *color.Color
}

// New creates a new logger
func New() *Logger {
	return &Logger{
		Logger:    log.New(os.Stdout, "", log.LstdFlags),
		highlight: color.New(color.FgGreen, color.Bold),
	}
}

// NewWriter creates a new logger that writes to the provided writer
func NewWriter(w io.Writer) *Logger {
	return &Logger{
		Logger:    log.New(w, "", log.LstdFlags),
		highlight: color.New(color.FgGreen, color.Bold),
	}
}

// SetOutput sets the output destination for the logger
func (l *Logger) SetOutput(w io.Writer) {
	l.Logger.SetOutput(w)
}

// SetFlags sets the output flags for the logger
func (l *Logger) SetFlags(flag int) {
	l.Logger.SetFlags(flag)
}

// Matchf logs a match line highlighted so hits stand out in long scan
// output. Color is stripped automatically when output is not a terminal.
func (l *Logger) Matchf(format string, v ...interface{}) {
	l.Logger.Print(l.highlight.Sprintf(format, v...))
}
