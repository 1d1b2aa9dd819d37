package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"vidmentor/internal/services"
)

const redactedKey = "<redacted>"

// ExportYAML writes the whole record as YAML. When redact is set the API key
// is masked.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, redact bool) error {
	current, err := s.Load(ctx)
	if err != nil {
		return err
	}
	return EncodeYAML(w, current, redact)
}

// EncodeYAML renders settings as YAML.
func EncodeYAML(w io.Writer, current Settings, redact bool) error {
	if redact && current.AI.APIKey != "" {
		current.AI.APIKey = redactedKey
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(current); err != nil {
		return fmt.Errorf("encode settings yaml: %w", err)
	}
	return enc.Close()
}

// DecodeYAML parses a YAML document into per-key values. Only top-level keys
// present in the document are returned, so an import can touch a subset.
func DecodeYAML(r io.Reader) (map[string]json.RawMessage, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return map[string]json.RawMessage{}, nil
		}
		return nil, services.Wrap(services.ErrValidation, "settings", "import", "parse yaml", err)
	}
	out := make(map[string]json.RawMessage, len(doc))
	for key, value := range doc {
		if !KnownKey(key) {
			return nil, services.Wrap(services.ErrValidation, "settings", "import", fmt.Sprintf("unknown setting %q", key), nil)
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "settings", "import", key, err)
		}
		out[key] = raw
	}
	if _, err := FromValues(out); err != nil {
		return nil, services.Wrap(services.ErrValidation, "settings", "import", "settings do not match the expected shape", err)
	}
	return out, nil
}

// ImportYAML replaces every key present in the document and returns the keys
// written, in canonical order. A redacted API key leaves the stored key alone.
func (s *Store) ImportYAML(ctx context.Context, r io.Reader, origin string) ([]string, error) {
	values, err := DecodeYAML(r)
	if err != nil {
		return nil, err
	}
	if raw, ok := values[KeyAI]; ok {
		if values[KeyAI], err = s.keepRedactedKey(ctx, raw); err != nil {
			return nil, err
		}
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	order := map[string]int{}
	for i, key := range Keys() {
		order[key] = i
	}
	sort.Slice(keys, func(i, j int) bool { return order[keys[i]] < order[keys[j]] })
	for _, key := range keys {
		if err := s.Set(ctx, key, values[key], origin); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func (s *Store) keepRedactedKey(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	stored, err := s.AI(ctx)
	if err != nil {
		return nil, err
	}
	return KeepRedactedKey(raw, stored.APIKey)
}

// KeepRedactedKey substitutes storedKey into an encoded ai value whose API key
// is the export placeholder. Other values are returned unchanged.
func KeepRedactedKey(raw json.RawMessage, storedKey string) (json.RawMessage, error) {
	var incoming AI
	if err := json.Unmarshal(raw, &incoming); err != nil {
		return nil, err
	}
	if incoming.APIKey != redactedKey {
		return raw, nil
	}
	incoming.APIKey = storedKey
	return json.Marshal(incoming)
}
