// Package web отдаёт страницу чат-бота и принимает действия пользователя.
// Каждый POST выполняет ровно одну операцию и перенаправляет (303) на GET /,
// который рисует страницу из состояния сессии.
package web

import (
	"MultiModalChatbot/internal/app/orchestrator"
	"MultiModalChatbot/internal/service/image"
	"MultiModalChatbot/internal/service/tts"
	"MultiModalChatbot/internal/session"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	sessionCookie = "chatbot_session"
	sessionKey    = "session"

	pageTitle    = "Multi-Modal AI Chatbot"
	pageSubtitle = "Seamlessly handles text and image inputs!"
)

var instructions = []string{
	"Ensure you have set the GOOGLE_API_KEY environment variable with a valid Google API key.",
	"Run the app with: go run ./cmd/chatbot",
	"For external access, use tools like ngrok to expose the local server.",
}

// Options параметры HTTP-слоя.
type Options struct {
	BindAddr       string
	MaxUploadBytes int64
	// Banner показывается вверху каждой страницы; пусто, если ключ API задан.
	Banner string
}

type Server struct {
	opts    Options
	store   *session.Store
	orch    *orchestrator.Orchestrator
	speech  tts.Synthesizer
	engine  *gin.Engine
	srv     *http.Server
	logger  *zap.SugaredLogger
	running atomic.Bool
}

// New собирает gin-роутер. speech может быть nil: озвучка тогда выключена.
func New(opts Options, store *session.Store, orch *orchestrator.Orchestrator, speech tts.Synthesizer, logger *zap.SugaredLogger) (*Server, error) {
	if opts.BindAddr == "" {
		opts.BindAddr = "127.0.0.1:8501"
	}
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{opts: opts, store: store, orch: orch, speech: speech, logger: logger}

	engine := gin.New()
	engine.Use(accessLog(logger), gin.Recovery())
	engine.SetHTMLTemplate(tmpl)

	engine.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	ui := engine.Group("/", s.withSession)
	ui.GET("/", s.handleIndex)
	ui.POST("/mode", s.handleMode)
	ui.POST("/text", s.handleText)
	ui.POST("/text/image", s.handleTextImage)
	ui.POST("/image", s.handleUpload)
	ui.POST("/image/analyze", s.handleAnalyze)
	ui.POST("/image/related", s.handleRelated)
	ui.GET("/media/:kind", s.handleMedia)
	ui.GET("/speech/:source", s.handleSpeech)

	s.engine = engine
	s.srv = &http.Server{
		Addr:              opts.BindAddr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler для httptest.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Addr() string { return s.opts.BindAddr }

// Run слушает адрес до отмены ctx. Блокирует; предназначен для errgroup.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("web server already running")
	}
	go func() {
		<-ctx.Done()
		_ = s.Stop(context.WithoutCancel(ctx))
	}()

	s.logger.Infow("Web UI listening", "url", "http://"+s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}
	s.logger.Infow("Web UI stopped")
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeoutCause(ctx, 5*time.Second, errors.New("web server shutdown timeout"))
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnw("graceful shutdown error", "error", err)
		return s.srv.Close()
	}
	return nil
}

// withSession находит сессию по cookie или заводит новую.
func (s *Server) withSession(c *gin.Context) {
	id, _ := c.Cookie(sessionCookie)
	sess, created := s.store.Get(id)
	if created {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, sess.ID, 0, "/", "", false, true)
		s.logger.Debugw("Session created", "session", sess.ID)
	}
	c.Set(sessionKey, sess)
	c.Next()
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

type pageData struct {
	Title        string
	Subtitle     string
	Banner       string
	Instructions []string
	Modes        []session.Mode
	Accept       string
	TTSEnabled   bool
	Version      int64

	Mode         session.Mode
	Prompt       string
	TextResponse string
	HasTextImage bool
	Upload       *image.DecodedImage
	Analysis     string
	HasRelated   bool
	Errors       []string
}

func (s *Server) handleIndex(c *gin.Context) {
	sess := currentSession(c)
	sess.Lock()
	snap := sess.Snapshot()
	sess.Unlock()

	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, "page.html", pageData{
		Title:        pageTitle,
		Subtitle:     pageSubtitle,
		Banner:       s.opts.Banner,
		Instructions: instructions,
		Modes:        session.Modes,
		Accept:       strings.Join(image.AllowedExtensions, ","),
		TTSEnabled:   s.speech != nil,
		Version:      time.Now().UnixNano(),

		Mode:         snap.Mode,
		Prompt:       snap.Prompt,
		TextResponse: snap.TextResponse,
		HasTextImage: snap.HasTextImage,
		Upload:       snap.Upload,
		Analysis:     snap.Analysis,
		HasRelated:   snap.HasRelated,
		Errors:       snap.Errors,
	})
}

func (s *Server) handleMode(c *gin.Context) {
	if err := s.orch.SelectMode(currentSession(c), c.PostForm("mode")); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	backToPage(c)
}

// Ошибки операций уже записаны в сессию и залогированы, здесь их достаточно проигнорировать.

func (s *Server) handleText(c *gin.Context) {
	_ = s.orch.SubmitText(c.Request.Context(), currentSession(c), c.PostForm("prompt"))
	backToPage(c)
}

func (s *Server) handleTextImage(c *gin.Context) {
	_ = s.orch.GenerateImageFromText(c.Request.Context(), currentSession(c))
	backToPage(c)
}

func (s *Server) handleUpload(c *gin.Context) {
	sess := currentSession(c)
	if s.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	}

	name, data, err := readUpload(c)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// Файл не выбран: как пустой загрузчик, ничего не делаем.
	case err != nil:
		_ = s.orch.RejectUpload(sess, err)
	default:
		_ = s.orch.UploadImage(sess, name, data)
	}
	backToPage(c)
}

func readUpload(c *gin.Context) (string, []byte, error) {
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, fmt.Errorf("file exceeds %d bytes", tooLarge.Limit)
		}
		return "", nil, err
	}
	f, err := header.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, err
	}
	return header.Filename, data, nil
}

func (s *Server) handleAnalyze(c *gin.Context) {
	_ = s.orch.AnalyzeImage(c.Request.Context(), currentSession(c))
	backToPage(c)
}

func (s *Server) handleRelated(c *gin.Context) {
	_ = s.orch.GenerateRelatedImage(c.Request.Context(), currentSession(c))
	backToPage(c)
}

// handleMedia отдаёт байты картинки сессии как есть.
func (s *Server) handleMedia(c *gin.Context) {
	sess := currentSession(c)
	var mime string
	var data []byte

	sess.Lock()
	switch c.Param("kind") {
	case "upload":
		if sess.Upload != nil {
			mime, data = sess.Upload.MimeType, sess.Upload.Data
		}
	case "text-image":
		if sess.TextImage != nil {
			mime, data = sess.TextImage.MimeType, sess.TextImage.Data
		}
	case "related-image":
		if sess.RelatedImage != nil {
			mime, data = sess.RelatedImage.MimeType, sess.RelatedImage.Data
		}
	}
	sess.Unlock()

	if data == nil {
		c.String(http.StatusNotFound, "no such image")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, mime, data)
}

func (s *Server) handleSpeech(c *gin.Context) {
	if s.speech == nil {
		c.String(http.StatusNotFound, "text-to-speech is disabled")
		return
	}
	sess := currentSession(c)
	var text string

	sess.Lock()
	switch c.Param("source") {
	case "text":
		text = sess.TextResponse
	case "analysis":
		text = sess.Analysis
	}
	sess.Unlock()

	if text == "" {
		c.String(http.StatusNotFound, "nothing to read")
		return
	}
	audio, err := s.speech.Synthesize(c.Request.Context(), text)
	if err != nil {
		s.logger.Warnw("Speech synthesis failed", "session", sess.ID, "error", err)
		c.String(http.StatusBadGateway, "Error generating speech: %v", err)
		return
	}
	c.Data(http.StatusOK, "audio/mpeg", audio)
}

func backToPage(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/")
}

// accessLog пишет каждый запрос в zap вместо стандартного логгера gin.
func accessLog(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		if c.Request.URL.Path == "/healthz" {
			return
		}
		logger.Infow("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"remote", c.ClientIP(),
			"took", time.Since(started).String(),
		)
	}
}
