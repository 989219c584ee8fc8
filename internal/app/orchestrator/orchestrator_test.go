package orchestrator

import (
	"MultiModalChatbot/internal/ai"
	"MultiModalChatbot/internal/ai/aitest"
	"MultiModalChatbot/internal/service/image"
	"MultiModalChatbot/internal/session"
	"bytes"
	"context"
	"errors"
	stdimage "image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

var generated = ai.GeneratedImage{MimeType: "image/png", Data: []byte("generated")}

func newTestOrchestrator(rec *aitest.Recorder, opts Options) *Orchestrator {
	return New(rec, image.NewProcessor(0, 0), opts, zap.NewNop().Sugar())
}

func newSession() *session.Session {
	s, _ := session.NewStore().Get("")
	return s
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, stdimage.NewRGBA(stdimage.Rect(0, 0, 4, 3))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSelectMode(t *testing.T) {
	o := newTestOrchestrator(&aitest.Recorder{}, Options{})
	s := newSession()

	if err := o.SelectMode(s, "Image"); err != nil || s.Mode != session.ModeImage {
		t.Fatalf("SelectMode(Image): err=%v mode=%s", err, s.Mode)
	}
	if err := o.SelectMode(s, "Audio"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("err = %v, want ErrUnknownMode", err)
	}
	if s.Mode != session.ModeImage {
		t.Fatal("invalid mode must not change the session")
	}
}

func TestSubmitText(t *testing.T) {
	rec := &aitest.Recorder{Text: "Hi! How can I help?"}
	o := newTestOrchestrator(rec, Options{})
	s := newSession()

	if err := o.SubmitText(context.Background(), s, "Hello"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	want := []aitest.ContentCall{{Parts: []ai.Part{ai.Text("Hello")}}}
	if diff := cmp.Diff(want, rec.ContentCalls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if s.TextResponse != "Hi! How can I help?" || s.Prompt != "Hello" {
		t.Fatalf("session = %+v", s)
	}
	if len(s.Errors) != 0 {
		t.Fatalf("unexpected errors %v", s.Errors)
	}
}

func TestSubmitEmptyTextDoesNothing(t *testing.T) {
	rec := &aitest.Recorder{Text: "x"}
	o := newTestOrchestrator(rec, Options{})
	s := newSession()

	if err := o.SubmitText(context.Background(), s, "   "); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	if rec.Calls() != 0 {
		t.Fatalf("expected no remote calls, got %d", rec.Calls())
	}
}

func TestGenerateImageFromText(t *testing.T) {
	rec := &aitest.Recorder{Text: "a poem", Images: []ai.GeneratedImage{generated}}
	o := newTestOrchestrator(rec, Options{})
	s := newSession()

	if err := o.SubmitText(context.Background(), s, "a lighthouse at dusk"); err != nil {
		t.Fatal(err)
	}
	if err := o.GenerateImageFromText(context.Background(), s); err != nil {
		t.Fatalf("GenerateImageFromText: %v", err)
	}
	want := []aitest.ImageCall{{
		Prompt: "a lighthouse at dusk",
		Params: ai.ImageParams{NumberOfImages: 1, SafetyFilterLevel: "block_only_high", PersonGeneration: "allow_adult", AspectRatio: "3:4"},
	}}
	if diff := cmp.Diff(want, rec.ImageCalls()); diff != "" {
		t.Fatalf("image calls mismatch (-want +got):\n%s", diff)
	}
	if len(rec.ContentCalls()) != 1 {
		t.Fatal("image generation must not re-run text generation")
	}
	if s.TextImage == nil || string(s.TextImage.Data) != "generated" {
		t.Fatalf("text image = %+v", s.TextImage)
	}
}

func TestGenerateImageFromTextWithoutPrompt(t *testing.T) {
	rec := &aitest.Recorder{}
	o := newTestOrchestrator(rec, Options{})
	s := newSession()

	err := o.GenerateImageFromText(context.Background(), s)
	if !errors.Is(err, ErrNoPrompt) {
		t.Fatalf("err = %v, want ErrNoPrompt", err)
	}
	if rec.Calls() != 0 {
		t.Fatal("no remote call expected")
	}
	if diff := cmp.Diff([]string{"Error generating image: no text prompt submitted"}, s.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestUploadAndAnalyzeImage(t *testing.T) {
	rec := &aitest.Recorder{Text: "A tiny black rectangle."}
	o := newTestOrchestrator(rec, Options{})
	s := newSession()
	data := testPNG(t)

	if err := o.UploadImage(s, "pic.png", data); err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if s.Upload == nil || !bytes.Equal(s.Upload.Data, data) || s.Mode != session.ModeImage {
		t.Fatalf("upload not stored unmodified: %+v", s.Upload)
	}
	if rec.Calls() != 0 {
		t.Fatal("upload must not call the model")
	}

	if err := o.AnalyzeImage(context.Background(), s); err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}
	want := []aitest.ContentCall{{Parts: []ai.Part{
		ai.Text("Tell me about this image:"),
		ai.Image("image/png", data),
	}}}
	if diff := cmp.Diff(want, rec.ContentCalls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if s.Analysis != "A tiny black rectangle." {
		t.Fatalf("analysis = %q", s.Analysis)
	}
}

func TestGenerateRelatedImageUsesFixedPrompt(t *testing.T) {
	rec := &aitest.Recorder{Images: []ai.GeneratedImage{generated}}
	o := newTestOrchestrator(rec, Options{})
	s := newSession()
	if err := o.UploadImage(s, "pic.PNG", testPNG(t)); err != nil {
		t.Fatal(err)
	}

	if err := o.GenerateRelatedImage(context.Background(), s); err != nil {
		t.Fatalf("GenerateRelatedImage: %v", err)
	}
	calls := rec.ImageCalls()
	if len(calls) != 1 || calls[0].Prompt != "A related scene to the uploaded image" || calls[0].Params != ai.DefaultImageParams() {
		t.Fatalf("unexpected image calls %+v", calls)
	}
	if s.RelatedImage == nil {
		t.Fatal("related image not stored")
	}
}

func TestUploadRejectsBadFiles(t *testing.T) {
	o := newTestOrchestrator(&aitest.Recorder{}, Options{})
	s := newSession()

	if err := o.UploadImage(s, "notes.txt", []byte("hello")); !errors.Is(err, image.ErrUnsupportedType) {
		t.Fatalf("err = %v", err)
	}
	if err := o.UploadImage(s, "broken.jpg", []byte("garbage")); err == nil {
		t.Fatal("expected decode error")
	}
	if s.Upload != nil || len(s.Errors) != 2 || !strings.HasPrefix(s.Errors[1], "Error loading image: ") {
		t.Fatalf("session after bad uploads: %+v", s)
	}
}

func TestRejectUploadClearsPreviousImage(t *testing.T) {
	rec := &aitest.Recorder{Text: "analysis", Images: []ai.GeneratedImage{generated}}
	o := newTestOrchestrator(rec, Options{})
	s := newSession()
	ctx := context.Background()
	if err := o.UploadImage(s, "a.png", testPNG(t)); err != nil {
		t.Fatal(err)
	}
	_ = o.AnalyzeImage(ctx, s)
	_ = o.GenerateRelatedImage(ctx, s)

	readErr := errors.New("file exceeds 1024 bytes")
	if err := o.RejectUpload(s, readErr); !errors.Is(err, readErr) {
		t.Fatalf("err = %v", err)
	}
	if s.Upload != nil || s.Analysis != "" || s.RelatedImage != nil {
		t.Fatalf("previous image state kept: %+v", s)
	}
	if diff := cmp.Diff([]string{"Error loading image: file exceeds 1024 bytes"}, s.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoteFailuresBecomeErrorStrings(t *testing.T) {
	boom := errors.New("quota exceeded")
	rec := &aitest.Recorder{TextErr: boom, ImagesErr: boom}
	o := newTestOrchestrator(rec, Options{})
	s := newSession()
	ctx := context.Background()

	_ = o.SubmitText(ctx, s, "Hello")
	_ = o.UploadImage(s, "a.png", testPNG(t))
	_ = o.AnalyzeImage(ctx, s)
	_ = o.GenerateRelatedImage(ctx, s)

	want := []string{
		"Error generating text: quota exceeded",
		"Error generating text from image: quota exceeded",
		"Error generating related image: quota exceeded",
	}
	if diff := cmp.Diff(want, s.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if rec.Calls() != 3 {
		t.Fatalf("each action must call the model exactly once, got %d calls", rec.Calls())
	}
}

func TestGenerateImageWithNoResults(t *testing.T) {
	rec := &aitest.Recorder{Text: "ok"}
	o := newTestOrchestrator(rec, Options{})
	s := newSession()
	_ = o.SubmitText(context.Background(), s, "Hello")

	if err := o.GenerateImageFromText(context.Background(), s); !errors.Is(err, ai.ErrNoImages) {
		t.Fatalf("err = %v, want ErrNoImages", err)
	}
	if len(s.Errors) != 1 || !strings.HasPrefix(s.Errors[0], "Error generating image: ") {
		t.Fatalf("errors = %v", s.Errors)
	}
}

func TestMissingCredentialSkipsRemoteCalls(t *testing.T) {
	rec := &aitest.Recorder{Text: "never"}
	o := newTestOrchestrator(rec, Options{CredentialMissing: true})
	s := newSession()

	err := o.SubmitText(context.Background(), s, "Hello")
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("err = %v", err)
	}
	if rec.Calls() != 0 {
		t.Fatalf("remote client must not be called, got %d calls", rec.Calls())
	}
	if len(s.Errors) != 1 || !strings.Contains(s.Errors[0], "Error") {
		t.Fatalf("errors = %v", s.Errors)
	}
}

type slowClient struct{ aitest.Recorder }

func (c *slowClient) GenerateContent(ctx context.Context, _ []ai.Part) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRequestTimeout(t *testing.T) {
	o := New(&slowClient{}, image.NewProcessor(0, 0), Options{RequestTimeout: 10 * time.Millisecond}, zap.NewNop().Sugar())
	s := newSession()

	err := o.SubmitText(context.Background(), s, "Hello")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
