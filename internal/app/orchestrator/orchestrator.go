package orchestrator

import (
	"MultiModalChatbot/internal/ai"
	"MultiModalChatbot/internal/service/image"
	"MultiModalChatbot/internal/session"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// AnalyzeInstruction фиксированная инструкция для анализа загруженной картинки.
	AnalyzeInstruction = "Tell me about this image:"
	// RelatedImagePrompt фиксированный промпт «похожей» картинки; содержимое загрузки не используется.
	RelatedImagePrompt = "A related scene to the uploaded image"
)

var (
	ErrMissingCredential = errors.New("missing API credential")
	ErrUnknownMode       = errors.New("unknown input type")
	ErrNoPrompt          = errors.New("no text prompt submitted")
	ErrNoUpload          = errors.New("no image uploaded")
)

// Options параметры оркестратора из конфигурации.
type Options struct {
	// CredentialMissing ключ не задан, удалённые вызовы не выполняются вовсе.
	CredentialMissing bool
	// RequestTimeout таймаут одного удалённого вызова; 0: без таймаута.
	RequestTimeout time.Duration
}

// Orchestrator связывает ввод пользователя с удалённой моделью. Каждый удалённый вызов
// изолирован: ошибка превращается в одну строку на странице, повторов нет.
type Orchestrator struct {
	client    ai.Client
	processor *image.Processor
	opts      Options
	logger    *zap.SugaredLogger
}

func New(client ai.Client, processor *image.Processor, opts Options, logger *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{client: client, processor: processor, opts: opts, logger: logger}
}

// SelectMode переключает тип ввода. Данные другого режима остаются в сессии, но не показываются.
func (o *Orchestrator) SelectMode(s *session.Session, value string) error {
	mode, ok := session.ParseMode(value)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, value)
	}
	s.Lock()
	defer s.Unlock()
	s.Mode = mode
	return nil
}

// SubmitText отправляет промпт в текстовую модель. Пустой промпт ничего не вызывает.
func (o *Orchestrator) SubmitText(ctx context.Context, s *session.Session, prompt string) error {
	prompt = strings.TrimSpace(prompt)

	s.Lock()
	defer s.Unlock()
	s.Mode = session.ModeText
	s.Prompt = prompt
	s.TextResponse = ""
	s.TextImage = nil
	if prompt == "" {
		return nil
	}

	text, err := o.generateText(ctx, "submit_text", []ai.Part{ai.Text(prompt)})
	if err != nil {
		return o.fail(s, "Error generating text", "submit_text", err)
	}
	s.TextResponse = text
	return nil
}

// GenerateImageFromText генерирует картинку по последнему успешному текстовому промпту.
func (o *Orchestrator) GenerateImageFromText(ctx context.Context, s *session.Session) error {
	s.Lock()
	defer s.Unlock()
	s.Mode = session.ModeText
	if s.Prompt == "" || s.TextResponse == "" {
		return o.fail(s, "Error generating image", "text_image", ErrNoPrompt)
	}

	img, err := o.generateImage(ctx, "text_image", s.Prompt)
	if err != nil {
		s.TextImage = nil
		return o.fail(s, "Error generating image", "text_image", err)
	}
	s.TextImage = img
	return nil
}

// UploadImage декодирует загруженный файл и сохраняет его в сессии без изменений.
func (o *Orchestrator) UploadImage(s *session.Session, name string, data []byte) error {
	s.Lock()
	defer s.Unlock()
	resetUpload(s)

	img, err := o.processor.Decode(name, data)
	if err != nil {
		return o.fail(s, "Error loading image", "upload_image", err)
	}
	s.Upload = &img
	o.logger.Infow("Image uploaded", "session", s.ID, "name", img.Name, "format", img.Format, "width", img.Width, "height", img.Height)
	return nil
}

// RejectUpload фиксирует загрузку, которую не удалось даже прочитать (слишком большая форма,
// оборванный multipart). Состояние сбрасывается так же, как при неудачном декодировании.
func (o *Orchestrator) RejectUpload(s *session.Session, err error) error {
	s.Lock()
	defer s.Unlock()
	resetUpload(s)
	return o.fail(s, "Error loading image", "upload_image", err)
}

func resetUpload(s *session.Session) {
	s.Mode = session.ModeImage
	s.Upload = nil
	s.Analysis = ""
	s.RelatedImage = nil
}

// AnalyzeImage отправляет [инструкция, картинка] в текстовую модель.
func (o *Orchestrator) AnalyzeImage(ctx context.Context, s *session.Session) error {
	s.Lock()
	defer s.Unlock()
	s.Mode = session.ModeImage
	s.Analysis = ""
	if s.Upload == nil {
		return o.fail(s, "Error generating text from image", "analyze_image", ErrNoUpload)
	}

	mime, data, err := o.processor.ForModel(*s.Upload)
	if err != nil {
		return o.fail(s, "Error generating text from image", "analyze_image", err)
	}
	text, err := o.generateText(ctx, "analyze_image", []ai.Part{ai.Text(AnalyzeInstruction), ai.Image(mime, data)})
	if err != nil {
		return o.fail(s, "Error generating text from image", "analyze_image", err)
	}
	s.Analysis = text
	return nil
}

// GenerateRelatedImage генерирует картинку по фиксированному промпту, если что-то загружено.
func (o *Orchestrator) GenerateRelatedImage(ctx context.Context, s *session.Session) error {
	s.Lock()
	defer s.Unlock()
	s.Mode = session.ModeImage
	s.RelatedImage = nil
	if s.Upload == nil {
		return o.fail(s, "Error generating related image", "related_image", ErrNoUpload)
	}

	img, err := o.generateImage(ctx, "related_image", RelatedImagePrompt)
	if err != nil {
		return o.fail(s, "Error generating related image", "related_image", err)
	}
	s.RelatedImage = img
	return nil
}

func (o *Orchestrator) generateText(ctx context.Context, op string, parts []ai.Part) (string, error) {
	if o.opts.CredentialMissing {
		return "", ErrMissingCredential
	}
	ctx, cancel := o.callContext(ctx)
	defer cancel()

	started := time.Now()
	text, err := o.client.GenerateContent(ctx, parts)
	if err != nil {
		return "", err
	}
	o.logger.Infow("Text generated", "op", op, "parts", len(parts), "chars", len(text), "took", time.Since(started).String())
	return text, nil
}

func (o *Orchestrator) generateImage(ctx context.Context, op string, prompt string) (*ai.GeneratedImage, error) {
	if o.opts.CredentialMissing {
		return nil, ErrMissingCredential
	}
	ctx, cancel := o.callContext(ctx)
	defer cancel()

	started := time.Now()
	images, err := o.client.GenerateImages(ctx, prompt, ai.DefaultImageParams())
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, ai.ErrNoImages
	}
	o.logger.Infow("Image generated", "op", op, "mime", images[0].MimeType, "bytes", len(images[0].Data), "took", time.Since(started).String())
	return &images[0], nil
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opts.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeoutCause(ctx, o.opts.RequestTimeout, errors.New("remote call timeout"))
}

// fail пишет строку ошибки в сессию и логирует. Процесс продолжает работу.
func (o *Orchestrator) fail(s *session.Session, prefix, op string, err error) error {
	s.AddError(fmt.Sprintf("%s: %v", prefix, err))
	o.logger.Warnw("Operation failed", "op", op, "session", s.ID, "error", err)
	return fmt.Errorf("%s: %w", op, err)
}
