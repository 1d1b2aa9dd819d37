package services_test

import (
	"errors"
	"strings"
	"testing"

	"vidmentor/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrProvider, "ai", "generate", "request failed", base)
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"ai", "generate", "request failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKindRoundTrip(t *testing.T) {
	tests := []struct {
		marker error
		kind   string
	}{
		{services.ErrConfiguration, services.KindConfiguration},
		{services.ErrValidation, services.KindValidation},
		{services.ErrTransport, services.KindTransport},
		{services.ErrTimeout, services.KindTimeout},
		{services.ErrProvider, services.KindProvider},
		{services.ErrUnknownOperation, services.KindUnknownOperation},
	}
	for _, tc := range tests {
		err := services.Wrap(tc.marker, "router", "dispatch", "detail", nil)
		if got := services.Kind(err); got != tc.kind {
			t.Fatalf("Kind(%v) = %q, want %q", err, got, tc.kind)
		}
		remote := services.FromKind(tc.kind, err.Error())
		if !errors.Is(remote, tc.marker) {
			t.Fatalf("FromKind(%q) lost marker", tc.kind)
		}
		if remote.Error() != err.Error() {
			t.Fatalf("FromKind changed message: %q vs %q", remote.Error(), err.Error())
		}
	}
	if got := services.Kind(errors.New("plain")); got != services.KindInternal {
		t.Fatalf("expected internal kind, got %q", got)
	}
	if got := services.Kind(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %q", got)
	}
}
