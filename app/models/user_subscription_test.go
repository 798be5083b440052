package models

import "testing"

func TestIsEntitling(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{status: SubscriptionStatusActive, want: true},
		{status: SubscriptionStatusTrialing, want: true},
		{status: SubscriptionStatusPastDue, want: true},
		{status: SubscriptionStatusCanceled, want: false},
		{status: SubscriptionStatusUnpaid, want: false},
		{status: SubscriptionStatusIncomplete, want: false},
		{status: SubscriptionStatusIncompleteExpired, want: false},
		{status: SubscriptionStatusPaused, want: false},
		{status: "something_else", want: false},
	}

	for _, tt := range tests {
		sub := &UserSubscription{Status: tt.status}
		if got := sub.IsEntitling(); got != tt.want {
			t.Fatalf("IsEntitling() with status %q = %v, want %v", tt.status, got, tt.want)
		}
	}
}
