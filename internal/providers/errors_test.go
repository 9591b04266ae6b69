package providers

import (
	"errors"
	"fmt"
	"testing"

	"sftgen/internal/util"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota":                                 ErrorQuota,
		"429 Too Many Requests":                              ErrorRate,
		"rate limit reached":                                 ErrorRate,
		"prompt too long":                                    ErrorContext,
		"timeout":                                            ErrorTransient,
		"ollama generate request failed: connection refused": ErrorTransient,
		"context deadline exceeded":                          ErrorTransient,
		"bad request":                                        ErrorPermanent,
	}
	for msg, want := range cases {
		if got := ClassifyError(errors.New(msg)); got != want {
			t.Fatalf("classify %q: got %s want %s", msg, got, want)
		}
	}
}

func TestClassifyParseErrors(t *testing.T) {
	if got := ClassifyError(fmt.Errorf("attempt 2: %w", util.ErrMissingAnswerTag)); got != ErrorParse {
		t.Fatalf("expected parse, got %s", got)
	}
	if got := ClassifyError(nil); got != "" {
		t.Fatalf("expected empty type for nil error, got %s", got)
	}
}
