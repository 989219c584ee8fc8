package session

import (
	"MultiModalChatbot/internal/ai"
	"MultiModalChatbot/internal/service/image"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mode: выбранный тип ввода на странице.
type Mode string

const (
	ModeText  Mode = "Text"
	ModeImage Mode = "Image"
)

// Modes в порядке отображения на странице.
var Modes = []Mode{ModeText, ModeImage}

// ParseMode принимает только два фиксированных значения.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeText, ModeImage:
		return Mode(s), true
	default:
		return "", false
	}
}

// Session: состояние одной вкладки браузера между перерисовками страницы.
// Поля меняются только под Lock (его держит оркестратор на время операции).
type Session struct {
	ID string

	mu       sync.Mutex
	lastSeen time.Time

	Mode Mode

	// Режим Text
	Prompt       string
	TextResponse string
	TextImage    *ai.GeneratedImage

	// Режим Image
	Upload       *image.DecodedImage
	Analysis     string
	RelatedImage *ai.GeneratedImage

	// Ошибки последнего действия, показываются один раз
	Errors []string
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// AddError добавляет строку ошибки для показа на странице.
func (s *Session) AddError(msg string) { s.Errors = append(s.Errors, msg) }

// TakeErrors возвращает ошибки и очищает их. Вызывается под Lock.
func (s *Session) TakeErrors() []string {
	errs := s.Errors
	s.Errors = nil
	return errs
}

// Snapshot: копия для рендера страницы без удержания блокировки.
type Snapshot struct {
	Mode         Mode
	Prompt       string
	TextResponse string
	HasTextImage bool
	Upload       *image.DecodedImage
	Analysis     string
	HasRelated   bool
	Errors       []string
}

// Snapshot снимает копию и забирает ошибки. Вызывается под Lock.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Mode:         s.Mode,
		Prompt:       s.Prompt,
		TextResponse: s.TextResponse,
		HasTextImage: s.TextImage != nil,
		Upload:       s.Upload,
		Analysis:     s.Analysis,
		HasRelated:   s.RelatedImage != nil,
		Errors:       s.TakeErrors(),
	}
}

// Store: потокобезопасное хранилище сессий в памяти. На диск ничего не пишется.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session), now: time.Now}
}

// Get возвращает сессию по id и продлевает её. Если id пуст или неизвестен, создаётся новая.
// created=true означает, что клиенту нужно выставить новый id.
func (st *Store) Get(id string) (s *Session, created bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	if s, ok := st.sessions[id]; ok && id != "" {
		s.lastSeen = now
		return s, false
	}
	s = &Session{ID: uuid.NewString(), Mode: ModeText, lastSeen: now}
	st.sessions[s.ID] = s
	return s, true
}

// Sweep удаляет сессии, неактивные дольше ttl, и возвращает их количество.
func (st *Store) Sweep(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	deadline := st.now().Add(-ttl)
	removed := 0
	for id, s := range st.sessions {
		if s.lastSeen.Before(deadline) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
