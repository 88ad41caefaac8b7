package config_test

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/mephi42/gopob/internal/platform/config"
	apperrors "github.com/mephi42/gopob/internal/platform/errors"
)

// TestExitf_ExitsWithCode1 verifies that Exitf writes to stderr and exits
// with code 1. os.Exit cannot be intercepted in-process, so it re-runs the
// test binary.
func TestExitf_ExitsWithCode1(t *testing.T) {
	if os.Getenv("TEST_EXITF_SUBPROCESS") == "1" {
		config.Exitf("fatal: %s", "something broke")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitf_ExitsWithCode1$")
	cmd.Env = append(os.Environ(), "TEST_EXITF_SUBPROCESS=1")

	out, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected *exec.ExitError, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %d", exitErr.ExitCode())
	}
	if !strings.Contains(string(out), "fatal: something broke") {
		t.Fatalf("expected stderr to contain %q, got %q", "fatal: something broke", string(out))
	}
}

func TestExitOnError_LocalizedRetryable(t *testing.T) {
	if os.Getenv("TEST_EXIT_ON_ERROR_SUBPROCESS") == "1" {
		config.ExitOnError(apperrors.WithMetadata(apperrors.CodeTransport, "response code 503",
			map[string]string{"url": "https://example.test/a"}))
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitOnError_LocalizedRetryable$")
	cmd.Env = append(os.Environ(), "TEST_EXIT_ON_ERROR_SUBPROCESS=1", "LC_ALL=en_US.UTF-8")

	out, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected *exec.ExitError, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != config.ExitRetryable {
		t.Fatalf("expected exit code %d, got %d", config.ExitRetryable, exitErr.ExitCode())
	}
	want := "Error: download of https://example.test/a failed: response code 503"
	if !strings.Contains(string(out), want) {
		t.Fatalf("expected stderr to contain %q, got %q", want, string(out))
	}
}

func TestLocale(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "de_DE.UTF-8")
	t.Setenv("LANG", "en_US.UTF-8")
	if got := config.Locale(); got != "de_DE.UTF-8" {
		t.Fatalf("Locale = %q, want %q", got, "de_DE.UTF-8")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: config.ExitOK},
		{name: "plain", err: errors.New("boom"), want: config.ExitFailure},
		{name: "transport", err: fmt.Errorf("download: %w", apperrors.New(apperrors.CodeTransport, "timeout")), want: config.ExitRetryable},
		{name: "invalid item", err: apperrors.New(apperrors.CodeInvalidItemDescriptor, "bad"), want: config.ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := config.ExitCode(tt.err); got != tt.want {
				t.Fatalf("ExitCode = %d, want %d", got, tt.want)
			}
		})
	}
}
