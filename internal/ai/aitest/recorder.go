// Package aitest содержит записывающий ai.Client для тестов.
package aitest

import (
	"MultiModalChatbot/internal/ai"
	"context"
	"sync"
)

// ContentCall один вызов GenerateContent.
type ContentCall struct {
	Parts []ai.Part
}

// ImageCall один вызов GenerateImages.
type ImageCall struct {
	Prompt string
	Params ai.ImageParams
}

// Recorder отвечает заданными значениями и запоминает все вызовы.
type Recorder struct {
	Text      string
	TextErr   error
	Images    []ai.GeneratedImage
	ImagesErr error

	mu           sync.Mutex
	contentCalls []ContentCall
	imageCalls   []ImageCall
}

var _ ai.Client = (*Recorder)(nil)

func (r *Recorder) GenerateContent(_ context.Context, parts []ai.Part) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]ai.Part, len(parts))
	copy(cp, parts)
	r.contentCalls = append(r.contentCalls, ContentCall{Parts: cp})
	if r.TextErr != nil {
		return "", r.TextErr
	}
	return r.Text, nil
}

func (r *Recorder) GenerateImages(_ context.Context, prompt string, params ai.ImageParams) ([]ai.GeneratedImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imageCalls = append(r.imageCalls, ImageCall{Prompt: prompt, Params: params})
	if r.ImagesErr != nil {
		return nil, r.ImagesErr
	}
	return r.Images, nil
}

func (r *Recorder) ContentCalls() []ContentCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ContentCall(nil), r.contentCalls...)
}

func (r *Recorder) ImageCalls() []ImageCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ImageCall(nil), r.imageCalls...)
}

// Calls общее число удалённых вызовов.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contentCalls) + len(r.imageCalls)
}
