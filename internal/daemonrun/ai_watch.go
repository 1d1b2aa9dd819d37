package daemonrun

import (
	"encoding/json"
	"log/slog"

	"vidmentor/internal/logging"
	"vidmentor/internal/settings"
)

// logAIChanges records provider switches made by any context, so the log
// shows which backend served the requests that follow.
func logAIChanges(store *settings.Store, logger *slog.Logger) *settings.Subscription {
	return store.SubscribeKey(settings.KeyAI, func(change settings.Change) {
		var before, after settings.AI
		if err := json.Unmarshal(change.New, &after); err != nil {
			logger.Debug("undecodable ai settings change", logging.Error(err))
			return
		}
		_ = json.Unmarshal(change.Old, &before)
		logger.Info("ai settings changed",
			logging.String(logging.FieldEventType, "ai_settings_changed"),
			logging.String(logging.FieldOrigin, change.Origin),
			logging.String("provider", after.Provider),
			logging.Bool("mock", after.UseMockAI),
			logging.Bool("key_present", after.APIKey != ""),
			logging.Bool("key_replaced", before.APIKey != after.APIKey))
	})
}
