package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vidmentor/internal/services"
)

// maxInterventionHistory bounds userData.preferredInterventions.
const maxInterventionHistory = 100

// Load decodes the whole record.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	values, err := s.GetAll(ctx)
	if err != nil {
		return Settings{}, err
	}
	return FromValues(values)
}

// AI returns the provider selection.
func (s *Store) AI(ctx context.Context) (AI, error) {
	out := Default().AI
	if err := s.decodeKey(ctx, KeyAI, &out); err != nil {
		return AI{}, err
	}
	return out, nil
}

// Preferences returns the presentation preferences.
func (s *Store) Preferences(ctx context.Context) (Preferences, error) {
	out := Default().Preferences
	if err := s.decodeKey(ctx, KeyPreferences, &out); err != nil {
		return Preferences{}, err
	}
	return out, nil
}

// FeatureEnabled reports whether a feature is on. Unknown features default
// to off.
func (s *Store) FeatureEnabled(ctx context.Context, name string) (bool, error) {
	features := Default().Features
	if err := s.decodeKey(ctx, KeyFeatures, &features); err != nil {
		return false, err
	}
	return features[name], nil
}

// decodeKey unmarshals the stored value over target, which the caller
// pre-fills with the default.
func (s *Store) decodeKey(ctx context.Context, key string, target any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// ToggleFeature flips a feature flag and returns its new state.
func (s *Store) ToggleFeature(ctx context.Context, name, origin string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, services.Wrap(services.ErrValidation, "settings", "toggle feature", "no feature name provided", nil)
	}
	var enabled bool
	_, err := s.update(ensureContext(ctx), KeyFeatures, origin, func(current *Settings) error {
		if current.Features == nil {
			current.Features = map[string]bool{}
		}
		enabled = !current.Features[name]
		current.Features[name] = enabled
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("toggle feature %s: %w", name, err)
	}
	return enabled, nil
}

// RecordInteraction counts an intervention in userData. Deliveries carrying a
// requestId already recorded are acknowledged without counting again; the
// returned bool reports whether this call changed anything.
func (s *Store) RecordInteraction(ctx context.Context, requestID, interactionType, origin string) (bool, error) {
	ctx = ensureContext(ctx)
	interactionType = strings.TrimSpace(interactionType)
	if interactionType == "" {
		return false, services.Wrap(services.ErrValidation, "settings", "record interaction", "no interaction type provided", nil)
	}
	return s.mutateUserData(ctx, requestID, interactionType, origin, func(data *UserData, at time.Time) {
		stamp := at.UnixMilli()
		data.TotalInterventions++
		data.PreferredInterventions = append(data.PreferredInterventions, Interaction{Type: interactionType, Timestamp: stamp})
		if extra := len(data.PreferredInterventions) - maxInterventionHistory; extra > 0 {
			data.PreferredInterventions = append([]Interaction(nil), data.PreferredInterventions[extra:]...)
		}
		data.LastUsed = &stamp
	})
}

// RecordVideo counts a page load announced by a foreground context, with the
// same requestId deduplication as RecordInteraction.
func (s *Store) RecordVideo(ctx context.Context, requestID, url, origin string) (bool, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(url) == "" {
		return false, services.Wrap(services.ErrValidation, "settings", "record video", "no url provided", nil)
	}
	return s.mutateUserData(ctx, requestID, "video:"+url, origin, func(data *UserData, at time.Time) {
		stamp := at.UnixMilli()
		data.TotalVideosWatched++
		data.LastUsed = &stamp
	})
}

func (s *Store) mutateUserData(ctx context.Context, requestID, label, origin string, mutate func(*UserData, time.Time)) (bool, error) {
	var change Change
	applied := false
	err := retryOnBusy(ctx, func() error {
		applied = false
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		at := s.now().UTC()
		if requestID != "" {
			fresh, err := claimRequest(ctx, tx, requestID, label, at)
			if err != nil {
				return err
			}
			if !fresh {
				return nil
			}
		}
		old, err := readTx(ctx, tx, KeyUserData)
		if err != nil {
			return err
		}
		current, err := FromValues(map[string]json.RawMessage{KeyUserData: old})
		if err != nil {
			return fmt.Errorf("decode userData: %w", err)
		}
		mutate(&current.UserData, at)
		raw, err := json.Marshal(current.UserData)
		if err != nil {
			return err
		}
		change, err = s.writeTx(ctx, tx, KeyUserData, old, raw, origin)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("update userData: %w", err)
	}
	if applied {
		s.publish(change)
	}
	return applied, nil
}

func claimRequest(ctx context.Context, tx *sql.Tx, requestID, label string, at time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO interaction_log (request_id, interaction_type, recorded_at) VALUES (?, ?, ?) ON CONFLICT(request_id) DO NOTHING",
		requestID, label, at.Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
