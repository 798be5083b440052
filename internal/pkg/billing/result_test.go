package billing

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestResultHTTPStatus(t *testing.T) {
	tests := []struct {
		res  Result
		want int
	}{
		{res: Processed(), want: fiber.StatusOK},
		{res: Ignored(), want: fiber.StatusOK},
		{res: Fatal(errors.New("bad payload")), want: fiber.StatusBadRequest},
		{res: Retryable(errors.New("provider down")), want: fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := tt.res.HTTPStatus(); got != tt.want {
			t.Fatalf("HTTPStatus(%s) = %d, want %d", tt.res.Outcome, got, tt.want)
		}
	}
}

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		in   Outcome
		want string
	}{
		{in: OutcomeProcessed, want: "processed"},
		{in: OutcomeIgnored, want: "ignored"},
		{in: OutcomeFatal, want: "fatal"},
		{in: OutcomeRetryable, want: "retryable"},
	}

	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Fatalf("Outcome(%d).String() = %q, want %q", tt.in, got, tt.want)
		}
	}
}
