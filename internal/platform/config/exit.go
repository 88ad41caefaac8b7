package config

import (
	"fmt"
	"os"

	apperrors "github.com/mephi42/gopob/internal/platform/errors"
)

// Exit codes returned by gopob commands.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitRetryable = 75 // EX_TEMPFAIL
)

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(ExitFailure)
}

// ExitCode maps a command error to a process exit code. Errors whose domain
// code is retryable exit with ExitRetryable so wrappers can try again.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if apperrors.CodeOf(err).Retryable() {
		return ExitRetryable
	}
	return ExitFailure
}

// ExitOnError reports err on stderr in the user's locale and exits with
// ExitCode(err). It returns when err is nil.
func ExitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", apperrors.UserMessage(err, Locale()))
	os.Exit(ExitCode(err))
}

// Locale returns the message locale from LC_ALL, LC_MESSAGES or LANG, in
// that order.
func Locale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}
