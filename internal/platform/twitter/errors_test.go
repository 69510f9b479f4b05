package twitter

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindForCode(t *testing.T) {
	tests := []struct {
		code int
		want ErrorKind
	}{
		{34, KindNotFound},
		{144, KindNotFound},
		{63, KindSuspended},
		{136, KindBlocked},
		{179, KindUnauthorized},
		{88, KindRateLimited},
		{999, KindUnknown},
		{0, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("code %d", tt.code), func(t *testing.T) {
			if got := kindForCode(tt.code); got != tt.want {
				t.Fatalf("kindForCode(%d) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestIsAutoRejectable(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{KindNotFound, true},
		{KindSuspended, true},
		{KindBlocked, true},
		{KindUnauthorized, true},
		{KindRateLimited, false},
		{KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := &APIError{Kind: tt.kind}
			if got := IsAutoRejectable(err); got != tt.want {
				t.Fatalf("IsAutoRejectable(%v) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestIsAutoRejectableWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("approval failed: %w", &APIError{Kind: KindNotFound, Code: 144})
	if !IsAutoRejectable(wrapped) {
		t.Fatal("expected wrapped api error to classify")
	}
	if IsAutoRejectable(errors.New("plain error")) {
		t.Fatal("plain errors must not classify as auto-rejectable")
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(&APIError{Kind: KindRateLimited, Code: 88}) {
		t.Fatal("expected rate-limited error to classify")
	}
	if IsRateLimited(&APIError{Kind: KindNotFound, Code: 34}) {
		t.Fatal("not-found must not classify as rate limited")
	}
	if IsRateLimited(errors.New("plain error")) {
		t.Fatal("plain errors must not classify as rate limited")
	}
}
