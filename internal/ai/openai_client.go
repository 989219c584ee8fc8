package ai

import (
	"MultiModalChatbot/internal/config"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"go.uber.org/zap"
)

// OpenAIClient отправляет текст и картинки через Responses API, картинки генерирует через Images API.
type OpenAIClient struct {
	client     *openai.Client
	textModel  string
	imageModel string
	logger     *zap.SugaredLogger
}

// NewOpenAIClient создаёт клиента. httpClient может быть nil. Ретраи SDK выключены, каждый вызов делается одной попыткой.
func NewOpenAIClient(cfg config.OpenAIConfig, httpClient *http.Client, logger *zap.SugaredLogger) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client := openai.NewClient(opts...)
	return &OpenAIClient{
		client:     &client,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		logger:     logger,
	}
}

func (c *OpenAIClient) GenerateContent(ctx context.Context, parts []Part) (string, error) {
	if len(parts) == 0 {
		return "", errors.New("openai: empty content")
	}
	content := make(responses.ResponseInputMessageContentListParam, 0, len(parts))
	for _, p := range parts {
		if p.IsImage() {
			content = append(content, responses.ResponseInputMessageContentListParam{
				{
					OfInputImage: &responses.ResponseInputImageParam{
						Detail:   responses.ResponseInputImageDetailAuto,
						ImageURL: openai.String(dataURL(p.MimeType, p.Data)),
					},
				},
			}...)
			continue
		}
		content = append(content, responses.ResponseInputMessageContentListParam{
			{OfInputText: &responses.ResponseInputTextParam{Text: p.Text}},
		}...)
	}

	resp, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: openai.ChatModel(c.textModel),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRoleUser),
			},
		},
	})
	if err != nil {
		return "", err
	}

	out := resp.OutputText()
	if out == "" {
		return "", errors.New("openai: response has no text output")
	}
	return out, nil
}

func (c *OpenAIClient) GenerateImages(ctx context.Context, prompt string, params ImageParams) ([]GeneratedImage, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("openai: empty image prompt")
	}
	req := openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(c.imageModel),
		N:      openai.Int(int64(max(1, params.NumberOfImages))),
		Size:   openai.ImageGenerateParamsSize(imageSize(c.imageModel, params.AspectRatio)),
	}
	// gpt-image-* всегда отвечают base64 и не принимают response_format
	if !strings.HasPrefix(c.imageModel, "gpt-image") {
		req.ResponseFormat = openai.ImageGenerateParamsResponseFormatB64JSON
	}
	// Параметры safety/person у OpenAI аналогов не имеют и не отправляются
	if c.logger != nil {
		c.logger.Debugw("OpenAI image request", "model", c.imageModel, "size", req.Size, "safety", params.SafetyFilterLevel)
	}

	resp, err := c.client.Images.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	images := make([]GeneratedImage, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.B64JSON == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("openai: base64 decode: %w", err)
		}
		images = append(images, GeneratedImage{MimeType: http.DetectContentType(data), Data: data})
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	return images, nil
}

// imageSize подбирает ближайший поддерживаемый моделью размер под соотношение сторон.
func imageSize(model, aspect string) string {
	portrait, landscape := "1024x1792", "1792x1024"
	if strings.HasPrefix(model, "gpt-image") {
		portrait, landscape = "1024x1536", "1536x1024"
	}
	switch aspect {
	case "3:4", "9:16", "2:3":
		return portrait
	case "4:3", "16:9", "3:2":
		return landscape
	default:
		return "1024x1024"
	}
}

func dataURL(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}
