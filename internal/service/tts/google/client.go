package google

import (
	"MultiModalChatbot/internal/config"
	"context"
	"errors"
	"strings"
	"time"

	gctts "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"go.uber.org/zap"
)

// Лимит Cloud TTS на размер входа: 5000 байт
const maxInputBytes = 5000

// Client реализует синтез речи через Google Cloud Text-to-Speech.
type Client struct {
	tts    *gctts.Client
	cfg    config.TTSConfig
	logger *zap.SugaredLogger
}

// New создаёт клиента SDK. Учётные данные берутся из ADC (GOOGLE_APPLICATION_CREDENTIALS).
func New(ctx context.Context, cfg config.TTSConfig, logger *zap.SugaredLogger) (*Client, error) {
	ttsClient, err := gctts.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Client{tts: ttsClient, cfg: cfg, logger: logger}, nil
}

func (c *Client) Close() error { return c.tts.Close() }

// Synthesize возвращает MP3 с озвучкой text.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	req, err := buildRequest(c.cfg, text)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	resp, err := c.tts.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, err
	}
	if c.logger != nil {
		c.logger.Infow("Google TTS synthesize completed", "took", time.Since(started).String(), "bytes", len(resp.GetAudioContent()))
	}
	return resp.GetAudioContent(), nil
}

func buildRequest(cfg config.TTSConfig, text string) (*ttspb.SynthesizeSpeechRequest, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("google tts: empty input text")
	}
	text = truncateUTF8(text, maxInputBytes)

	// Только MP3: его без проблем играет <audio> в любом браузере
	return &ttspb.SynthesizeSpeechRequest{
		Input: &ttspb.SynthesisInput{InputSource: &ttspb.SynthesisInput_Text{Text: text}},
		Voice: &ttspb.VoiceSelectionParams{
			LanguageCode: cfg.Language,
			Name:         cfg.Voice,
		},
		AudioConfig: &ttspb.AudioConfig{
			AudioEncoding: ttspb.AudioEncoding_MP3,
			SpeakingRate:  cfg.SpeakingRate,
		},
	}, nil
}

// truncateUTF8 обрезает строку до n байт, не разрывая руну.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
