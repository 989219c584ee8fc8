package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Провайдеры удалённой модели
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderStub   = "stub"
)

type Config struct {
	DebugMode  bool   `env:"DEBUG_MODE"`  // Режим дебага: development-логгер и gin debug
	AIProvider string `env:"AI_PROVIDER"` // gemini|openai|stub
	BindAddr   string `env:"BIND_ADDR"`   // Адрес HTTP сервера страницы

	Gemini GeminiConfig
	OpenAI OpenAIConfig
	TTS    TTSConfig

	MaxUploadBytes       int64         `env:"MAX_UPLOAD_BYTES"`       // Лимит multipart-формы загрузки
	MaxImagePixels       int64         `env:"MAX_IMAGE_PIXELS"`       // Лимит ширина*высота загружаемой картинки
	ModelImageMaxWidth   int           `env:"MODEL_IMAGE_MAX_WIDTH"`  // Уменьшать картинку перед отправкой в модель; 0: не трогать
	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT"`        // Таймаут одного удалённого вызова; 0: без таймаута
	SessionTTL           time.Duration `env:"SESSION_TTL"`            // Сколько живёт неактивная сессия браузера
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL"` // Периодичность очистки сессий
}

// GeminiConfig конфигурация Google Generative Language API (Gemini + Imagen).
type GeminiConfig struct {
	APIKey     string `env:"GOOGLE_API_KEY"`
	TextModel  string `env:"GEMINI_TEXT_MODEL"`
	ImageModel string `env:"GEMINI_IMAGE_MODEL"`
	BaseURL    string `env:"GEMINI_BASE_URL"`
	// Авторизация через Application Default Credentials вместо API ключа (Vertex AI и т.п.)
	UseADC bool `env:"GEMINI_USE_ADC"`
}

// OpenAIConfig конфигурация альтернативного провайдера через openai-go.
type OpenAIConfig struct {
	APIKey     string `env:"OPENAI_API_KEY"`
	BaseURL    string `env:"OPENAI_BASE_URL"` // Пусто: официальный endpoint
	TextModel  string `env:"OPENAI_TEXT_MODEL"`
	ImageModel string `env:"OPENAI_IMAGE_MODEL"`
}

// TTSConfig озвучка ответов через Google Cloud Text-to-Speech. Ключ берётся из ADC.
type TTSConfig struct {
	Enabled      bool    `env:"TTS_ENABLED"`
	Language     string  `env:"GOOGLE_TTS_LANGUAGE"`
	Voice        string  `env:"GOOGLE_TTS_VOICE"`
	SpeakingRate float64 `env:"GOOGLE_TTS_SPEAKING_RATE"`
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	return &Config{
		DebugMode:  false,
		AIProvider: ProviderGemini,
		BindAddr:   "127.0.0.1:8501",
		Gemini: GeminiConfig{
			TextModel:  "gemini-1.5-flash",
			ImageModel: "imagen-3.0-generate-001",
			BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
		},
		OpenAI: OpenAIConfig{
			TextModel:  "gpt-4o",
			ImageModel: "dall-e-3",
		},
		TTS: TTSConfig{
			Enabled:      false,
			Language:     "en-US",
			Voice:        "en-US-Standard-C",
			SpeakingRate: 1.0,
		},
		MaxUploadBytes:       20 << 20,
		MaxImagePixels:       178956970,
		ModelImageMaxWidth:   0,
		RequestTimeout:       0,
		SessionTTL:           time.Hour,
		SessionSweepInterval: 5 * time.Minute,
	}
}

// NewConfig загружает конфигурацию приложения из .env, окружения и аргументов процесса.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()
	return Load(os.Args[1:])
}

// Load стартует с дефолтов, затем перекрывает окружением и флагами из args.
func Load(args []string) (*Config, error) {
	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("chatbot", flag.ContinueOnError)
	fs.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "enable debug logging and gin debug mode")
	fs.StringVar(&cfg.AIProvider, "ai-provider", cfg.AIProvider, "remote model provider: gemini|openai|stub")
	fs.StringVar(&cfg.BindAddr, "bind-addr", cfg.BindAddr, "HTTP listen address")
	// Gemini
	fs.StringVar(&cfg.Gemini.APIKey, "google-api-key", cfg.Gemini.APIKey, "Google API key (overrides GOOGLE_API_KEY)")
	fs.StringVar(&cfg.Gemini.TextModel, "gemini-text-model", cfg.Gemini.TextModel, "Gemini model for text and image understanding")
	fs.StringVar(&cfg.Gemini.ImageModel, "gemini-image-model", cfg.Gemini.ImageModel, "Imagen model for image generation")
	fs.StringVar(&cfg.Gemini.BaseURL, "gemini-base-url", cfg.Gemini.BaseURL, "Generative Language API root URL")
	fs.BoolVar(&cfg.Gemini.UseADC, "gemini-use-adc", cfg.Gemini.UseADC, "authenticate with Application Default Credentials instead of an API key")
	// OpenAI
	fs.StringVar(&cfg.OpenAI.APIKey, "openai-api-key", cfg.OpenAI.APIKey, "OpenAI API key (overrides OPENAI_API_KEY)")
	fs.StringVar(&cfg.OpenAI.BaseURL, "openai-base-url", cfg.OpenAI.BaseURL, "OpenAI compatible endpoint, empty for the default")
	fs.StringVar(&cfg.OpenAI.TextModel, "openai-text-model", cfg.OpenAI.TextModel, "OpenAI model for text and image understanding")
	fs.StringVar(&cfg.OpenAI.ImageModel, "openai-image-model", cfg.OpenAI.ImageModel, "OpenAI model for image generation")
	// TTS
	fs.BoolVar(&cfg.TTS.Enabled, "tts-enabled", cfg.TTS.Enabled, "enable reading answers aloud via Google Cloud TTS")
	fs.StringVar(&cfg.TTS.Language, "google-tts-language", cfg.TTS.Language, "TTS language, e.g. en-US")
	fs.StringVar(&cfg.TTS.Voice, "google-tts-voice", cfg.TTS.Voice, "TTS voice name, e.g. en-US-Standard-C")
	fs.Float64Var(&cfg.TTS.SpeakingRate, "google-tts-speaking-rate", cfg.TTS.SpeakingRate, "TTS speaking rate (1.0 by default)")
	// Лимиты и таймауты
	fs.Int64Var(&cfg.MaxUploadBytes, "max-upload-bytes", cfg.MaxUploadBytes, "maximum upload form size in bytes")
	fs.Int64Var(&cfg.MaxImagePixels, "max-image-pixels", cfg.MaxImagePixels, "reject uploads whose width*height exceeds this")
	fs.IntVar(&cfg.ModelImageMaxWidth, "model-image-max-width", cfg.ModelImageMaxWidth, "downscale uploads wider than this before sending to the model, 0 disables")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "timeout of a single remote call, 0 disables")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "idle lifetime of a browser session")
	fs.DurationVar(&cfg.SessionSweepInterval, "session-sweep-interval", cfg.SessionSweepInterval, "how often idle sessions are removed")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.AIProvider = strings.ToLower(strings.TrimSpace(cfg.AIProvider))
	cfg.Gemini.APIKey = strings.TrimSpace(cfg.Gemini.APIKey)
	cfg.OpenAI.APIKey = strings.TrimSpace(cfg.OpenAI.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения. Отсутствие ключа ошибкой не считается: об этом сообщает баннер на странице.
func (c *Config) Validate() error {
	switch c.AIProvider {
	case ProviderGemini, ProviderOpenAI, ProviderStub:
	default:
		return fmt.Errorf("unknown ai provider %q: use gemini|openai|stub", c.AIProvider)
	}
	if strings.TrimSpace(c.BindAddr) == "" {
		return errors.New("bind address is empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("max image pixels must be positive, got %d", c.MaxImagePixels)
	}
	if c.ModelImageMaxWidth < 0 {
		return fmt.Errorf("model image max width must not be negative, got %d", c.ModelImageMaxWidth)
	}
	if c.RequestTimeout < 0 || c.SessionTTL < 0 || c.SessionSweepInterval < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

// CredentialMissing сообщает, что выбранному провайдеру нужен ключ, а он не задан.
func (c *Config) CredentialMissing() bool {
	switch c.AIProvider {
	case ProviderGemini:
		return c.Gemini.APIKey == "" && !c.Gemini.UseADC
	case ProviderOpenAI:
		return c.OpenAI.APIKey == ""
	default:
		return false
	}
}

// CredentialBanner текст баннера для страницы, если ключ не найден.
func (c *Config) CredentialBanner() string {
	if !c.CredentialMissing() {
		return ""
	}
	if c.AIProvider == ProviderOpenAI {
		return "OpenAI API key not found. Please set OPENAI_API_KEY as an environment variable."
	}
	return "Google API key not found. Please set it as an environment variable."
}
