package ai

import (
	"MultiModalChatbot/internal/config"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestNewProviders(t *testing.T) {
	tests := []struct {
		provider string
		check    func(Client) bool
	}{
		{config.ProviderGemini, func(c Client) bool { _, ok := c.(*GeminiClient); return ok }},
		{config.ProviderOpenAI, func(c Client) bool { _, ok := c.(*OpenAIClient); return ok }},
		{config.ProviderStub, func(c Client) bool { _, ok := c.(*StubClient); return ok }},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.AIProvider = tt.provider
			c, err := New(context.Background(), cfg, zap.NewNop().Sugar())
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !tt.check(c) {
				t.Fatalf("unexpected client type %T", c)
			}
		})
	}

	cfg := config.Defaults()
	cfg.AIProvider = "bard"
	if _, err := New(context.Background(), cfg, zap.NewNop().Sugar()); err == nil {
		t.Fatal("unknown provider must fail")
	}
}

func TestNewWithoutADCFallsBackToAPIKey(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", filepath.Join(t.TempDir(), "missing.json"))

	t.Run("no key", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Gemini.UseADC = true

		c, err := New(context.Background(), cfg, zap.NewNop().Sugar())
		if err != nil {
			t.Fatalf("missing ADC must not be fatal: %v", err)
		}
		if _, ok := c.(*GeminiClient); !ok {
			t.Fatalf("client = %T", c)
		}
		if cfg.Gemini.UseADC || !cfg.CredentialMissing() {
			t.Fatal("missing ADC without a key must count as a missing credential")
		}
		if cfg.CredentialBanner() == "" {
			t.Fatal("banner expected")
		}
	})

	t.Run("with key", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Gemini.UseADC = true
		cfg.Gemini.APIKey = "k"

		c, err := New(context.Background(), cfg, zap.NewNop().Sugar())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		gc, ok := c.(*GeminiClient)
		if !ok || gc.apiKey != "k" {
			t.Fatalf("expected API key client, got %T", c)
		}
		if cfg.CredentialMissing() {
			t.Fatal("API key is present")
		}
	})
}

func TestNewGeminiADCClientWithoutCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", filepath.Join(t.TempDir(), "missing.json"))

	_, err := NewGeminiADCClient(context.Background(), config.GeminiConfig{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrCredentialsNotFound) {
		t.Fatalf("err = %v, want ErrCredentialsNotFound", err)
	}
}
