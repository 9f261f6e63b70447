package config

import "os"

const (
	DefaultPlantIDBase = "https://api.plant.id/v2"
	DefaultGeminiBase  = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel = "gemini-1.5-flash-latest"
	DefaultOpenAIBase  = "https://api.openai.com/v1"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// Defaults returns a working configuration with credentials pulled from the
// process environment. A config file overrides any of these fields; ${VAR}
// references inside the file are expanded at load time.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Classifier: ClassifierConfig{
			APIBase: DefaultPlantIDBase,
			APIKey:  os.Getenv("PLANT_ID_API_KEY"),
		},
		Narrator: NarratorConfig{
			Provider: "gemini",
			Providers: map[string]ProviderConfig{
				"gemini": {
					APIBase:      DefaultGeminiBase,
					APIKey:       os.Getenv("GOOGLE_API_KEY"),
					DefaultModel: DefaultGeminiModel,
				},
				"openai": {
					APIBase:      DefaultOpenAIBase,
					APIKey:       os.Getenv("OPENAI_API_KEY"),
					DefaultModel: DefaultOpenAIModel,
				},
			},
		},
		Channels: ChannelsConfig{
			Web: WebConfig{
				Enabled: true,
				Host:    "127.0.0.1",
				Port:    8080,
			},
			CLI: CLIConfig{
				Enabled: true,
			},
			Telegram: TelegramConfig{
				Enabled:   false,
				Token:     os.Getenv("TELEGRAM_BOT_TOKEN"),
				ParseMode: "Markdown",
			},
		},
	}
}
