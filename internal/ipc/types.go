package ipc

import (
	"time"

	"vidmentor/internal/protocol"
)

// ServiceName is the RPC service registered by the daemon.
const ServiceName = "Background"

// DispatchRequest carries one envelope plus the caller's origin tag.
type DispatchRequest struct {
	Origin  string           `json:"origin"`
	Request protocol.Request `json:"request"`
}

// DispatchResponse wraps the routed response envelope.
type DispatchResponse struct {
	Response protocol.Response `json:"response"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents daemon runtime information.
type StatusResponse struct {
	Running        bool      `json:"running"`
	PID            int       `json:"pid"`
	StartedAt      time.Time `json:"started_at"`
	SettingsPath   string    `json:"settings_path"`
	LockPath       string    `json:"lock_path"`
	SocketPath     string    `json:"socket_path"`
	PortSocketPath string    `json:"port_socket_path"`
	OpenChannels   int       `json:"open_channels"`
	InFlight       int       `json:"in_flight"`
	Dispatched     uint64    `json:"dispatched"`
	IdleSeconds    float64   `json:"idle_seconds"`
	IdleSuspend    float64   `json:"idle_suspend_seconds"`
}

// ShutdownRequest asks the daemon to exit.
type ShutdownRequest struct {
	Reason string `json:"reason"`
}

// ShutdownResponse acknowledges a shutdown request.
type ShutdownResponse struct {
	Stopping bool `json:"stopping"`
}
