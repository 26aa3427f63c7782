// registry.go holds the static model and voice registries. Both are read-only
// after configuration load; selection commands validate against them.
package session

import "sort"

// ModelProfile describes one selectable completion model.
type ModelProfile struct {
	// ID is the registry key users pick with /model.
	ID string `yaml:"-"`

	// Name is the display name shown in /models.
	Name string `yaml:"name"`

	// Model is the identifier sent to the completion backend.
	Model string `yaml:"model"`

	// MaxTokens caps the completion output length.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is the sampling temperature for this model.
	Temperature float64 `yaml:"temperature"`

	// Description is a short human description shown in /models.
	Description string `yaml:"description"`
}

// VoiceProfile describes one selectable synthesis voice.
type VoiceProfile struct {
	// ID is the registry key users pick with /voice.
	ID string `yaml:"-"`

	// Name is the display name shown in /voices.
	Name string `yaml:"name"`

	// Voice is the identifier sent to the synthesis backend.
	Voice string `yaml:"voice"`

	// Emotion is the style tag passed alongside the voice.
	Emotion string `yaml:"emotion"`

	// Description is a short human description shown in /voices.
	Description string `yaml:"description"`
}

// DefaultModels returns the built-in model registry.
func DefaultModels() map[string]ModelProfile {
	return map[string]ModelProfile{
		"gemini-2.5-pro": {
			Name: "Gemini 2.5 Pro", Model: "gemini-2.5-pro",
			MaxTokens: 50000, Temperature: 0.7,
			Description: "Large multimodal model with a wide feature set",
		},
		"gpt-4.1": {
			Name: "GPT-4.1", Model: "gpt-4.1",
			MaxTokens: 32000, Temperature: 0.7,
			Description: "Flagship model with an extended context window",
		},
		"gpt-4.1-mini": {
			Name: "GPT-4.1 Mini", Model: "gpt-4.1-mini",
			MaxTokens: 16000, Temperature: 0.7,
			Description: "Compact GPT-4.1 with a good speed/quality balance",
		},
		"gpt-4.1-nano": {
			Name: "GPT-4.1 Nano", Model: "gpt-4.1-nano",
			MaxTokens: 8000, Temperature: 0.7,
			Description: "Lightweight GPT-4.1 for fast answers",
		},
		"chatgpt-4o-latest": {
			Name: "ChatGPT-4o", Model: "chatgpt-4o-latest",
			MaxTokens: 16000, Temperature: 0.7,
			Description: "Optimized ChatGPT-4 with improved throughput",
		},
		"gpt-4o-mini": {
			Name: "GPT-4o Mini", Model: "gpt-4o-mini",
			MaxTokens: 16000, Temperature: 0.7,
			Description: "Compact variant of the optimized GPT-4",
		},
		"claude-opus-4-thinking-all": {
			Name: "Claude Opus 4", Model: "claude-opus-4-thinking-all",
			MaxTokens: 200000, Temperature: 0.7,
			Description: "Advanced Claude model with strong analysis",
		},
		"claude-sonnet-4-thinking-all": {
			Name: "Claude Sonnet", Model: "claude-sonnet-4-thinking-all",
			MaxTokens: 12000, Temperature: 0.7,
			Description: "Balanced Claude model for everyday work",
		},
		"deepseek-v3-250324": {
			Name: "DeepSeek V3", Model: "deepseek-v3-250324",
			MaxTokens: 16000, Temperature: 0.7,
			Description: "DeepSeek with improved context understanding",
		},
		"deepseek-r1-250528": {
			Name: "DeepSeek R1", Model: "deepseek-r1-250528",
			MaxTokens: 8192, Temperature: 0.7,
			Description: "Reasoning-focused DeepSeek model",
		},
		"grok-3-all": {
			Name: "Grok 3", Model: "grok-3-all",
			MaxTokens: 128000, Temperature: 0.7,
			Description: "General-purpose Grok model",
		},
		"grok-3-reasoner": {
			Name: "Grok 3 Reasoner", Model: "grok-3-reasoner",
			MaxTokens: 128000, Temperature: 0.7,
			Description: "Grok variant specialized in complex reasoning",
		},
		"o4-mini": {
			Name: "O4 Mini", Model: "o4-mini",
			MaxTokens: 4096, Temperature: 0.7,
			Description: "Compact and fast reasoning model",
		},
		"o3": {
			Name: "O3", Model: "o3",
			MaxTokens: 4096, Temperature: 0.7,
			Description: "General-purpose reasoning model",
		},
	}
}

// DefaultVoices returns the built-in SpeechKit voice registry.
func DefaultVoices() map[string]VoiceProfile {
	return map[string]VoiceProfile{
		"alena": {
			Name: "Alena", Voice: "alena", Emotion: "neutral",
			Description: "Female voice, calm and neutral",
		},
		"alena_good": {
			Name: "Alena (friendly)", Voice: "alena", Emotion: "good",
			Description: "Female voice with a warm, friendly tone",
		},
		"jane": {
			Name: "Jane", Voice: "jane", Emotion: "neutral",
			Description: "Female voice, expressive",
		},
		"omazh": {
			Name: "Omazh", Voice: "omazh", Emotion: "neutral",
			Description: "Female voice, low register",
		},
		"zahar": {
			Name: "Zahar", Voice: "zahar", Emotion: "neutral",
			Description: "Male voice, neutral",
		},
		"filipp": {
			Name: "Filipp", Voice: "filipp", Emotion: "neutral",
			Description: "Male voice, deep register",
		},
		"ermil": {
			Name: "Ermil", Voice: "ermil", Emotion: "neutral",
			Description: "Male voice, soft delivery",
		},
	}
}

// sortedIDs returns map keys in stable order for listings.
func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
