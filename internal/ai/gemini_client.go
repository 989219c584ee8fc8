package ai

import (
	"MultiModalChatbot/internal/config"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	cloudPlatformScope   = "https://www.googleapis.com/auth/cloud-platform"
	// Ответ с картинками в base64 бывает большим
	maxGeminiResponseBytes = 32 << 20
)

// ErrCredentialsNotFound: Application Default Credentials недоступны.
var ErrCredentialsNotFound = errors.New("application default credentials not found")

// GeminiClient ходит в Generative Language REST API: generateContent для текста
// и predict (Imagen) для генерации изображений.
type GeminiClient struct {
	http       *http.Client
	baseURL    string
	apiKey     string
	textModel  string
	imageModel string
	logger     *zap.SugaredLogger
}

// NewGeminiClient создаёт клиента с авторизацией по API ключу. httpClient может быть nil.
func NewGeminiClient(cfg config.GeminiConfig, httpClient *http.Client, logger *zap.SugaredLogger) *GeminiClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultGeminiBaseURL
	}
	return &GeminiClient{
		http:       httpClient,
		baseURL:    base,
		apiKey:     cfg.APIKey,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		logger:     logger,
	}
}

// NewGeminiADCClient создаёт OAuth2 HTTP‑клиента через ADC/metadata. API Key не используется.
func NewGeminiADCClient(ctx context.Context, cfg config.GeminiConfig, logger *zap.SugaredLogger) (*GeminiClient, error) {
	httpClient, err := google.DefaultClient(ctx, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w (set GOOGLE_APPLICATION_CREDENTIALS): %w", ErrCredentialsNotFound, err)
	}
	cfg.APIKey = ""
	return NewGeminiClient(cfg, httpClient, logger), nil
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generateContentRequest struct {
	Contents []geminiContent `json:"contents"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string `json:"prompt"`
}

type predictParameters struct {
	SampleCount       int    `json:"sampleCount"`
	SafetyFilterLevel string `json:"safetyFilterLevel,omitempty"`
	PersonGeneration  string `json:"personGeneration,omitempty"`
	AspectRatio       string `json:"aspectRatio,omitempty"`
}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

// apiError формат ошибок Google API.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *GeminiClient) GenerateContent(ctx context.Context, parts []Part) (string, error) {
	if len(parts) == 0 {
		return "", errors.New("gemini: empty content")
	}
	req := generateContentRequest{Contents: []geminiContent{{Role: "user"}}}
	for _, p := range parts {
		if p.IsImage() {
			req.Contents[0].Parts = append(req.Contents[0].Parts, geminiPart{InlineData: &geminiInlineData{
				MimeType: p.MimeType,
				Data:     base64.StdEncoding.EncodeToString(p.Data),
			}})
			continue
		}
		req.Contents[0].Parts = append(req.Contents[0].Parts, geminiPart{Text: p.Text})
	}

	var resp generateContentResponse
	if err := c.post(ctx, c.textModel, "generateContent", &req, &resp); err != nil {
		return "", err
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("gemini: response has no candidates")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini: candidate has no text (finish reason %s)", resp.Candidates[0].FinishReason)
	}
	return sb.String(), nil
}

func (c *GeminiClient) GenerateImages(ctx context.Context, prompt string, params ImageParams) ([]GeneratedImage, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("gemini: empty image prompt")
	}
	req := predictRequest{
		Instances: []predictInstance{{Prompt: prompt}},
		Parameters: predictParameters{
			SampleCount:       max(1, params.NumberOfImages),
			SafetyFilterLevel: params.SafetyFilterLevel,
			PersonGeneration:  params.PersonGeneration,
			AspectRatio:       params.AspectRatio,
		},
	}

	var resp predictResponse
	if err := c.post(ctx, c.imageModel, "predict", &req, &resp); err != nil {
		return nil, err
	}

	images := make([]GeneratedImage, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		if p.BytesBase64Encoded == "" {
			// Отфильтрованные safety-фильтром предсказания приходят без байтов
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.BytesBase64Encoded)
		if err != nil {
			return nil, fmt.Errorf("gemini: base64 decode: %w", err)
		}
		mime := p.MimeType
		if mime == "" {
			mime = http.DetectContentType(data)
		}
		images = append(images, GeneratedImage{MimeType: mime, Data: data})
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	return images, nil
}

// post выполняет POST {base}/models/{model}:{method} и декодирует JSON ответ в out.
func (c *GeminiClient) post(ctx context.Context, model, method string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/models/%s:%s", c.baseURL, model, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if c.logger != nil {
		c.logger.Infow("Gemini request completed", "model", model, "method", method, "status", resp.StatusCode, "took", time.Since(started).String())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var ae apiError
		if json.Unmarshal(b, &ae) == nil && ae.Error.Message != "" {
			return fmt.Errorf("gemini error: status=%d %s: %s", resp.StatusCode, ae.Error.Status, ae.Error.Message)
		}
		if len(b) == 0 {
			b = []byte(resp.Status)
		}
		return fmt.Errorf("gemini error: status=%d, body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxGeminiResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("gemini: decode json response: %w", err)
	}
	return nil
}
