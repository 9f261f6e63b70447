// Package narrator provides the text-generation clients that turn composed
// prompts into farmer-facing answers.
package narrator

import (
	"fmt"
	"log/slog"

	"agriassist/internal/config"
	"agriassist/internal/domain"
)

// New builds the narrator selected by the config. Unknown provider names
// with an API base and key configured are treated as OpenAI-compatible.
func New(cfg *config.Config, logger *slog.Logger) (domain.Narrator, error) {
	name, pc := cfg.Narrator.Active()

	switch name {
	case "gemini":
		return NewGemini(GeminiConfig{
			APIKey:  pc.APIKey,
			APIBase: pc.APIBase,
			Model:   pc.DefaultModel,
			Logger:  logger,
		}), nil
	case "openai":
		return NewOpenAI(OpenAIConfig{
			APIKey:  pc.APIKey,
			APIBase: pc.APIBase,
			Model:   pc.DefaultModel,
			Logger:  logger,
		}), nil
	default:
		if pc.APIBase != "" && pc.APIKey != "" {
			return NewOpenAI(OpenAIConfig{
				APIKey:  pc.APIKey,
				APIBase: pc.APIBase,
				Model:   pc.DefaultModel,
				Logger:  logger,
			}), nil
		}
		return nil, fmt.Errorf("unknown narrator provider: %s", name)
	}
}
