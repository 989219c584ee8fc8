package ai

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
)

// StubClient заглушка, которая не делает реальных запросов
type StubClient struct{}

func NewStubClient() *StubClient { return &StubClient{} }

func (c *StubClient) GenerateContent(_ context.Context, parts []Part) (string, error) {
	var texts []string
	images := 0
	for _, p := range parts {
		if p.IsImage() {
			images++
			continue
		}
		texts = append(texts, p.Text)
	}
	return fmt.Sprintf("запрос получен: %q, images: %d", strings.Join(texts, " "), images), nil
}

// GenerateImages рисует однотонную заглушку нужных пропорций.
func (c *StubClient) GenerateImages(_ context.Context, _ string, params ImageParams) ([]GeneratedImage, error) {
	w, h := aspectSize(params.AspectRatio, 384)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill := color.RGBA{R: 0x8a, G: 0x9b, B: 0xb0, A: 0xff}
	for y := range h {
		for x := range w {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	n := max(1, params.NumberOfImages)
	out := make([]GeneratedImage, 0, n)
	for range n {
		out = append(out, GeneratedImage{MimeType: "image/png", Data: buf.Bytes()})
	}
	return out, nil
}

// aspectSize переводит "W:H" в размеры с шириной base. Некорректное значение: квадрат.
func aspectSize(aspect string, base int) (int, int) {
	ws, hs, ok := strings.Cut(aspect, ":")
	if !ok {
		return base, base
	}
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return base, base
	}
	return base, base * h / w
}
