package tts

import "context"

// Synthesizer абстракция TTS. Возвращает готовое аудио (MP3), воспроизводит его браузер.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
