package mail

import (
	"strings"
	"testing"
)

func TestConfirmationEmailBody(t *testing.T) {
	body := ConfirmationEmailBody("Jo", "https://example.com/verify?token=abc")

	if !strings.Contains(body, "Jo") {
		t.Fatalf("expected body to greet the subscriber, got: %s", body)
	}
	if !strings.Contains(body, "https://example.com/verify?token=abc") {
		t.Fatalf("expected body to contain the verification link, got: %s", body)
	}
}

func TestSubscriptionConfirmedBody(t *testing.T) {
	body := SubscriptionConfirmedBody("Jo", "Basic Box", "GBP 9.99")

	for _, want := range []string{"Jo", "Basic Box", "GBP 9.99"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected body to contain %q, got: %s", want, body)
		}
	}
}
