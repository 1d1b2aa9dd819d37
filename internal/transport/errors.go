package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/rpc"
	"os"
	"strings"
	"syscall"

	"vidmentor/internal/services"
)

// IsTransient reports whether err looks like the daemon being briefly
// unreachable, in which case the request is worth sending again.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case errors.Is(err, syscall.ENOENT),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, os.ErrNotExist),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, rpc.ErrShutdown),
		errors.Is(err, services.ErrTransport):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type category struct {
	marker error
	symbol string
	label  string
	hint   string
}

var categories = []category{
	{services.ErrConfiguration, "⚙", "configuration", "update the AI settings and try again"},
	{services.ErrTimeout, "⟳", "connection", "the assistant took too long; retry or restart the daemon"},
	{services.ErrTransport, "⟳", "connection", "retry, or restart the daemon with 'vidmentor start'"},
	{services.ErrProvider, "✗", "provider", ""},
	{services.ErrValidation, "!", "invalid request", ""},
	{services.ErrUnknownOperation, "?", "unsupported operation", ""},
}

// UserMessage renders err as a single line suitable for a terminal or panel,
// prefixed by a symbol for its category.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if services.Kind(err) == services.KindInternal && IsTransient(err) {
		err = services.Wrap(services.ErrTransport, "", "", "daemon unreachable", err)
	}
	for _, c := range categories {
		if !errors.Is(err, c.marker) {
			continue
		}
		detail := strings.TrimPrefix(err.Error(), c.marker.Error()+": ")
		msg := c.symbol + " " + c.label + ": " + detail
		if c.hint != "" {
			msg += " (" + c.hint + ")"
		}
		return msg
	}
	return "✗ error: " + err.Error()
}
