package services_test

import (
	"context"
	"testing"

	"vidmentor/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRequestID(ctx, "req-123")
	ctx = services.WithOrigin(ctx, "cli-7")
	ctx = services.WithMessageType(ctx, "SIMPLIFY_TEXT")

	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
	if origin, ok := services.OriginFromContext(ctx); !ok || origin != "cli-7" {
		t.Fatalf("unexpected origin: %v %v", origin, ok)
	}
	if mt, ok := services.MessageTypeFromContext(ctx); !ok || mt != "SIMPLIFY_TEXT" {
		t.Fatalf("unexpected message type: %v %v", mt, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRequestID(ctx, "")
	ctx = services.WithOrigin(ctx, "")
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected no request id")
	}
	if _, ok := services.OriginFromContext(ctx); ok {
		t.Fatal("expected no origin")
	}
}
