package logging

import (
	"fmt"
	"os"

	"github.com/yuya-takeyama/s3-bucket-sync/internal/stats"
)

// Logger provides the operator-facing console output.
type Logger struct {
	quiet bool
}

// NewLogger creates a new logger
func NewLogger(quiet bool) *Logger {
	return &Logger{quiet: quiet}
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	if !l.quiet {
		fmt.Printf(format+"\n", args...)
	}
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "ERROR: "+format+"\n", args...)
}

// Quiet reports whether non-error output is suppressed.
func (l *Logger) Quiet() bool {
	return l.quiet
}

// PrintRunHeader prints the pre-run summary.
func (l *Logger) PrintRunHeader(source, target string, concurrency int, dryRun bool) {
	if l.quiet {
		return
	}
	mode := ""
	if dryRun {
		mode = " (dryrun)"
	}
	fmt.Printf("Syncing s3://%s to s3://%s%s\n", source, target, mode)
	fmt.Printf("Concurrency: %d\n", concurrency)
}

// PrintSummary prints the final report of the sync operation.
func (l *Logger) PrintSummary(s stats.Summary) {
	if l.quiet && s.Errors == 0 && !s.Interrupted {
		return
	}

	fmt.Println()
	fmt.Println("=== Summary ===")
	fmt.Printf("Total:   %d files\n", s.Total)
	fmt.Printf("Copied:  %d files\n", s.Copied)
	fmt.Printf("Skipped: %d files\n", s.Skipped)
	if s.Errors > 0 {
		fmt.Printf("Errors:  %d\n", s.Errors)
	}
	if s.Interrupted && s.NotProcessed > 0 {
		fmt.Printf("Not processed: %d\n", s.NotProcessed)
	}

	switch {
	case s.Interrupted:
		fmt.Println("Sync interrupted")
	case s.Errors > 0:
		fmt.Println("Sync completed with errors")
	default:
		fmt.Println("Sync completed")
	}
}
