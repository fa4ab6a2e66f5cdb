// Package tts defines the Synthesizer interface for text-to-speech backends.
//
// A synthesizer wraps a speech service (e.g., the Google Translate TTS
// endpoint or ElevenLabs) and presents a uniform one-shot interface: text in,
// audio stream out. The voice controller treats synthesis as a black box and
// plays whatever stream comes back.
//
// Implementations must be safe for concurrent use; multiple guilds may
// synthesize speech at the same time.
package tts

import (
	"context"
	"errors"

	"github.com/quincybot/quincy/pkg/audio"
)

// ErrUnsupportedLanguage is returned by [Synthesizer.Synthesize] when the
// requested language code is not recognised by the backend. Callers can match
// it with errors.Is to distinguish bad input from backend failures.
var ErrUnsupportedLanguage = errors.New("tts: unsupported language")

// Synthesizer is the abstraction over any TTS backend.
type Synthesizer interface {
	// Synthesize converts text to speech in the given language and returns an
	// audio stream ready for playback. languageCode is a backend-specific
	// identifier (e.g., "en-uk"); an empty code selects the backend default.
	//
	// The caller owns the returned stream and must close it. Returns
	// [ErrUnsupportedLanguage] for unknown codes, or a wrapped backend error
	// on network or service failure.
	Synthesize(ctx context.Context, text, languageCode string) (audio.Source, error)

	// Languages returns the language codes the backend accepts, mapped to
	// human-readable names. Used by the front end to render the language
	// listing.
	Languages(ctx context.Context) (map[string]string, error)
}
