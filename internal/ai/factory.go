package ai

import (
	"MultiModalChatbot/internal/config"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// New выбирает реализацию Client по cfg.AIProvider.
// Отсутствие ключа не мешает созданию клиента: вызовы просто завершатся ошибкой.
// Если ADC недоступны, cfg.Gemini.UseADC сбрасывается и используется API ключ;
// без ключа cfg.CredentialMissing() после этого вернёт true.
func New(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (Client, error) {
	switch cfg.AIProvider {
	case config.ProviderGemini, "":
		if cfg.Gemini.UseADC {
			client, err := NewGeminiADCClient(ctx, cfg.Gemini, logger)
			if err == nil {
				return client, nil
			}
			if !errors.Is(err, ErrCredentialsNotFound) {
				return nil, err
			}
			if logger != nil {
				logger.Warnw("ADC unavailable, falling back to API key", "error", err)
			}
			cfg.Gemini.UseADC = false
		}
		return NewGeminiClient(cfg.Gemini, nil, logger), nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAI, nil, logger), nil
	case config.ProviderStub:
		return NewStubClient(), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.AIProvider)
	}
}
