package ai

import (
	"context"
	"errors"
)

// Параметры генерации изображений, фиксированные для всех вызовов страницы.
const (
	SafetyBlockOnlyHigh = "block_only_high"
	PersonAllowAdult    = "allow_adult"
	AspectRatio3x4      = "3:4"
)

// ErrNoImages возвращается, если модель ответила успешно, но без картинок.
var ErrNoImages = errors.New("model returned no images")

// Client интерфейс для взаимодействия с удалённой мультимодальной моделью.
// Все реализации должны быть взаимозаменяемыми.
type Client interface {
	// GenerateContent отправляет список частей (текст и/или картинки) и возвращает текст ответа.
	GenerateContent(ctx context.Context, parts []Part) (string, error)
	// GenerateImages генерирует изображения по промпту.
	GenerateImages(ctx context.Context, prompt string, params ImageParams) ([]GeneratedImage, error)
}

// Part одна часть содержимого запроса, текст или картинка.
type Part struct {
	Text     string
	MimeType string
	Data     []byte
}

// Text создаёт текстовую часть.
func Text(s string) Part { return Part{Text: s} }

// Image создаёт часть с картинкой (сырые байты файла).
func Image(mimeType string, data []byte) Part { return Part{MimeType: mimeType, Data: data} }

// IsImage сообщает, что часть несёт картинку.
func (p Part) IsImage() bool { return len(p.Data) > 0 }

type ImageParams struct {
	NumberOfImages    int
	SafetyFilterLevel string
	PersonGeneration  string
	AspectRatio       string
}

// DefaultImageParams одна картинка, фильтр только для high, взрослые люди разрешены, 3:4.
func DefaultImageParams() ImageParams {
	return ImageParams{
		NumberOfImages:    1,
		SafetyFilterLevel: SafetyBlockOnlyHigh,
		PersonGeneration:  PersonAllowAdult,
		AspectRatio:       AspectRatio3x4,
	}
}

type GeneratedImage struct {
	MimeType string
	Data     []byte
}
