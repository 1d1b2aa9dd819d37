package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"vidmentor/internal/ai"
	"vidmentor/internal/behavior"
	"vidmentor/internal/logging"
	"vidmentor/internal/protocol"
	"vidmentor/internal/services"
)

// DefaultOrigin tags settings changes when the caller did not identify itself.
const DefaultOrigin = "background"

// SettingsStore is the subset of the settings store the handlers use.
type SettingsStore interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	GetAll(ctx context.Context) (map[string]json.RawMessage, error)
	GetMany(ctx context.Context, keys []string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, key string, value any, origin string) error
	ToggleFeature(ctx context.Context, name, origin string) (bool, error)
	RecordInteraction(ctx context.Context, requestID, interactionType, origin string) (bool, error)
	RecordVideo(ctx context.Context, requestID, url, origin string) (bool, error)
}

// Assistant is the subset of the AI gateway the handlers use.
type Assistant interface {
	AnalyzeFrame(ctx context.Context, req ai.FrameRequest) (ai.ObjectDetectionResult, error)
	Probe(ctx context.Context, dataURL, prompt string) (ai.ProbeResult, error)
	Simplify(ctx context.Context, text, level string) (ai.SimplificationResult, error)
	GenerateChecklist(ctx context.Context, transcript string, keyFrames []string) (ai.ChecklistResult, error)
	DetectConfusion(ctx context.Context, sample behavior.Sample) (ai.ConfusionAssessment, error)
}

// Handler serves one message type.
type Handler func(ctx context.Context, req protocol.Request) (any, error)

// Router maps message types to handlers.
type Router struct {
	handlers map[protocol.MessageType]Handler
	logger   *slog.Logger
}

// New wires the handlers for every supported message type.
func New(store SettingsStore, assistant Assistant, logger *slog.Logger) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &handlers{store: store, assistant: assistant}
	return &Router{
		logger: logging.NewComponentLogger(logger, "router"),
		handlers: map[protocol.MessageType]Handler{
			protocol.AnalyzeFrame:      h.analyzeFrame,
			protocol.TestGemini:        h.testGemini,
			protocol.SimplifyText:      h.simplifyText,
			protocol.GenerateChecklist: h.generateChecklist,
			protocol.DetectConfusion:   h.detectConfusion,
			protocol.GetSettings:       h.getSettings,
			protocol.UpdateSettings:    h.updateSettings,
			protocol.ToggleFeature:     h.toggleFeature,
			protocol.RecordInteraction: h.recordInteraction,
			protocol.ExtensionReady:    h.extensionReady,
		},
	}
}

// Handles reports whether t has a registered handler.
func (r *Router) Handles(t protocol.MessageType) bool {
	_, ok := r.handlers[t]
	return ok
}

// Dispatch runs the handler for req.Type and always returns a response
// echoing req.RequestID.
func (r *Router) Dispatch(ctx context.Context, req protocol.Request) (resp protocol.Response) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithRequestID(ctx, req.RequestID)
	ctx = services.WithMessageType(ctx, string(req.Type))
	logger := logging.WithContext(ctx, r.logger)

	handler, ok := r.handlers[req.Type]
	if !ok {
		err := services.Wrap(services.ErrUnknownOperation, "router", "dispatch",
			fmt.Sprintf("unknown message type %q", req.Type), nil)
		logging.WarnWithContext(logger, "unknown message type", "router_unknown_type",
			logging.String(logging.FieldErrorHint, "foreground and daemon versions may differ"),
			logging.String(logging.FieldImpact, "request rejected"),
		)
		return protocol.Failure(req.RequestID, err)
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("handler panic: %v", recovered)
			logging.ErrorWithContext(logger, "handler panicked", "router_handler_panic",
				logging.String("panic", fmt.Sprint(recovered)),
				logging.String("stack", string(debug.Stack())),
			)
			resp = protocol.Failure(req.RequestID, err)
		}
	}()

	logger.Debug("dispatching request")
	value, err := handler(ctx, req)
	if err != nil {
		logger.Info("request failed",
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
		)
		return protocol.Failure(req.RequestID, err)
	}
	logger.Debug("request completed")
	return protocol.Success(req.RequestID, value)
}

func originOf(ctx context.Context) string {
	if origin, ok := services.OriginFromContext(ctx); ok {
		return origin
	}
	return DefaultOrigin
}

func missing(operation, field string) error {
	return services.Wrap(services.ErrValidation, "router", operation, "no "+field+" provided", nil)
}

func invalid(operation, field string, err error) error {
	return services.Wrap(services.ErrValidation, "router", operation, "invalid "+field, err)
}

func stringField(req protocol.Request, key string) string {
	return strings.TrimSpace(req.String(key))
}
