// Package eleven provides a [tts.Synthesizer] backed by the ElevenLabs
// streaming WebSocket API. Audio arrives as base64-encoded PCM chunks which
// are collected into a single playback source.
package eleven

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/coder/websocket"

	"github.com/quincybot/quincy/pkg/audio"
	"github.com/quincybot/quincy/pkg/tts"
)

const (
	defaultEndpoint = "wss://api.elevenlabs.io"
	streamPathFmt   = "/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s"
	defaultModel    = "eleven_flash_v2_5"
	defaultVoice    = "21m00Tcm4TlvDq8ikWAM"

	// The API emits pcm_16000: 16 kHz mono 16-bit little-endian.
	outputFormat     = "pcm_16000"
	outputSampleRate = 16000
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Synthesizer)(nil)

// languages lists the ISO 639-1 codes supported by the flash v2.5 model.
var languages = map[string]string{
	"ar": "Arabic",
	"cs": "Czech",
	"da": "Danish",
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"fi": "Finnish",
	"fr": "French",
	"hi": "Hindi",
	"hu": "Hungarian",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nl": "Dutch",
	"no": "Norwegian",
	"pl": "Polish",
	"pt": "Portuguese",
	"ro": "Romanian",
	"ru": "Russian",
	"sv": "Swedish",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

// Option is a functional option for configuring the [Synthesizer].
type Option func(*Synthesizer)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(s *Synthesizer) {
		s.model = model
	}
}

// WithVoice sets the voice ID used for synthesis.
func WithVoice(voiceID string) Option {
	return func(s *Synthesizer) {
		s.voiceID = voiceID
	}
}

// WithEndpoint overrides the API endpoint (scheme and host). Useful in tests.
func WithEndpoint(endpoint string) Option {
	return func(s *Synthesizer) {
		s.endpoint = endpoint
	}
}

// Synthesizer implements [tts.Synthesizer] backed by the ElevenLabs streaming
// API. Safe for concurrent use; each Synthesize call opens its own WebSocket.
type Synthesizer struct {
	apiKey   string
	model    string
	voiceID  string
	endpoint string
}

// New creates a Synthesizer. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("eleven: apiKey must not be empty")
	}
	s := &Synthesizer{
		apiKey:   apiKey,
		model:    defaultModel,
		voiceID:  defaultVoice,
		endpoint: defaultEndpoint,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// ---- WebSocket message types ----

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// boiMessage is the initial "begin of input" handshake frame. It carries the
// API key and stream configuration.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
	LanguageCode  string         `json:"language_code,omitempty"`
}

// textMessage carries one text fragment to synthesize.
type textMessage struct {
	Text string `json:"text"`
}

// audioResponse is one JSON message received from the API.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded PCM
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// Synthesize implements [tts.Synthesizer]. It opens a WebSocket, sends the
// full text, and collects audio chunks until the service signals completion.
// The returned source declares its PCM format so transport adapters can
// resample it.
func (s *Synthesizer) Synthesize(ctx context.Context, text, languageCode string) (audio.Source, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("eleven: empty text")
	}
	if languageCode != "" {
		if _, ok := languages[strings.ToLower(languageCode)]; !ok {
			return nil, fmt.Errorf("%w: %q", tts.ErrUnsupportedLanguage, languageCode)
		}
	}

	wsURL := s.endpoint + fmt.Sprintf(streamPathFmt, s.voiceID, s.model, outputFormat)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("eleven: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// BOI frame: authenticate and configure, with the required leading space.
	boi := boiMessage{
		Text:          " ",
		VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
		XiAPIKey:      s.apiKey,
		LanguageCode:  strings.ToLower(languageCode),
	}
	if err := writeJSON(ctx, conn, boi); err != nil {
		return nil, fmt.Errorf("eleven: send handshake: %w", err)
	}
	if err := writeJSON(ctx, conn, textMessage{Text: text + " "}); err != nil {
		return nil, fmt.Errorf("eleven: send text: %w", err)
	}
	// Empty text is the end-of-stream marker.
	if err := writeJSON(ctx, conn, textMessage{}); err != nil {
		return nil, fmt.Errorf("eleven: send end of stream: %w", err)
	}

	var pcm bytes.Buffer
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// The service may close the socket instead of flagging the last
			// chunk; treat a close after receiving audio as completion.
			if pcm.Len() > 0 && websocket.CloseStatus(err) != -1 {
				break
			}
			return nil, fmt.Errorf("eleven: read: %w", err)
		}

		var resp audioResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("eleven: decode response: %w", err)
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return nil, fmt.Errorf("eleven: decode audio chunk: %w", err)
			}
			pcm.Write(chunk)
		}
		if resp.IsFinal {
			break
		}
	}

	if pcm.Len() == 0 {
		return nil, errors.New("eleven: service returned no audio")
	}
	return audio.NewPCMSource(
		io.NopCloser(&pcm),
		audio.Format{SampleRate: outputSampleRate, Channels: 1},
	), nil
}

// Languages implements [tts.Synthesizer]. The set is static; ctx is unused.
func (s *Synthesizer) Languages(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(languages))
	for k, v := range languages {
		out[k] = v
	}
	return out, nil
}

// writeJSON marshals v and writes it as a single text frame.
func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
