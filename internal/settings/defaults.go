package settings

import (
	"encoding/json"
	"slices"
)

// Top-level keys of the settings record.
const (
	KeyExtensionEnabled = "extensionEnabled"
	KeyFeatures         = "features"
	KeyPreferences      = "preferences"
	KeyAI               = "ai"
	KeyUserData         = "userData"
)

// Feature names understood by the assistant.
const (
	FeatureObjectHighlighting       = "objectHighlighting"
	FeatureVocabularySimplification = "vocabularySimplification"
	FeatureStepChecklist            = "stepChecklist"
	FeatureConfusionDetection       = "confusionDetection"
)

// Preferences tunes how assistance is presented.
type Preferences struct {
	SimplificationLevel string  `json:"simplificationLevel" yaml:"simplificationLevel"`
	UIPosition          string  `json:"uiPosition" yaml:"uiPosition"`
	FontSize            string  `json:"fontSize" yaml:"fontSize"`
	HighlightColor      string  `json:"highlightColor" yaml:"highlightColor"`
	HighlightOpacity    float64 `json:"highlightOpacity" yaml:"highlightOpacity"`
	PauseDuration       int     `json:"pauseDuration" yaml:"pauseDuration"`
	ProactiveAssistance bool    `json:"proactiveAssistance" yaml:"proactiveAssistance"`
}

// AI selects the inference provider and models.
type AI struct {
	Provider  string `json:"provider" yaml:"provider"`
	APIKey    string `json:"apiKey" yaml:"apiKey"`
	ModelVLM  string `json:"modelVLM" yaml:"modelVLM"`
	ModelLLM  string `json:"modelLLM" yaml:"modelLLM"`
	UseMockAI bool   `json:"useMockAI" yaml:"useMockAI"`
}

// Interaction records one assistance intervention.
type Interaction struct {
	Type      string `json:"type" yaml:"type"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
}

// UserData holds usage counters.
type UserData struct {
	TotalVideosWatched     int           `json:"totalVideosWatched" yaml:"totalVideosWatched"`
	TotalInterventions     int           `json:"totalInterventions" yaml:"totalInterventions"`
	PreferredInterventions []Interaction `json:"preferredInterventions" yaml:"preferredInterventions"`
	LastUsed               *int64        `json:"lastUsed" yaml:"lastUsed"`
}

// Settings is the typed view of the whole record.
type Settings struct {
	ExtensionEnabled bool            `json:"extensionEnabled" yaml:"extensionEnabled"`
	Features         map[string]bool `json:"features" yaml:"features"`
	Preferences      Preferences     `json:"preferences" yaml:"preferences"`
	AI               AI              `json:"ai" yaml:"ai"`
	UserData         UserData        `json:"userData" yaml:"userData"`
}

// Default returns the settings a fresh install starts with.
func Default() Settings {
	return Settings{
		ExtensionEnabled: true,
		Features: map[string]bool{
			FeatureObjectHighlighting:       true,
			FeatureVocabularySimplification: true,
			FeatureStepChecklist:            true,
			FeatureConfusionDetection:       true,
		},
		Preferences: Preferences{
			SimplificationLevel: "medium",
			UIPosition:          "right",
			FontSize:            "medium",
			HighlightColor:      "#FFD54F",
			HighlightOpacity:    0.35,
			PauseDuration:       3,
			ProactiveAssistance: true,
		},
		AI: AI{
			Provider: "gemini",
			ModelVLM: "gemini-2.0-flash",
			ModelLLM: "gemini-2.0-flash",
		},
		UserData: UserData{
			PreferredInterventions: []Interaction{},
		},
	}
}

// Keys returns the top-level keys in canonical order.
func Keys() []string {
	return []string{KeyExtensionEnabled, KeyFeatures, KeyPreferences, KeyAI, KeyUserData}
}

// KnownKey reports whether key is a top-level settings key.
func KnownKey(key string) bool {
	return slices.Contains(Keys(), key)
}

// Values splits s into one encoded value per top-level key.
func (s Settings) Values() (map[string]json.RawMessage, error) {
	fields := map[string]any{
		KeyExtensionEnabled: s.ExtensionEnabled,
		KeyFeatures:         s.Features,
		KeyPreferences:      s.Preferences,
		KeyAI:               s.AI,
		KeyUserData:         s.UserData,
	}
	out := make(map[string]json.RawMessage, len(fields))
	for key, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		out[key] = raw
	}
	return out, nil
}

// FromValues overlays stored values onto the defaults.
func FromValues(values map[string]json.RawMessage) (Settings, error) {
	s := Default()
	targets := map[string]any{
		KeyExtensionEnabled: &s.ExtensionEnabled,
		KeyFeatures:         &s.Features,
		KeyPreferences:      &s.Preferences,
		KeyAI:               &s.AI,
		KeyUserData:         &s.UserData,
	}
	for key, raw := range values {
		target, ok := targets[key]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return Settings{}, err
		}
	}
	if s.UserData.PreferredInterventions == nil {
		s.UserData.PreferredInterventions = []Interaction{}
	}
	return s, nil
}

func defaultValue(key string) (json.RawMessage, bool) {
	values, err := Default().Values()
	if err != nil {
		return nil, false
	}
	raw, ok := values[key]
	return raw, ok
}
