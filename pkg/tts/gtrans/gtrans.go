// Package gtrans provides a [tts.Synthesizer] backed by the public Google
// Translate text-to-speech endpoint. It produces MP3 audio and needs no API
// key, which makes it the default backend for casual soundboard use.
//
// The endpoint caps each request at a couple hundred characters, so longer
// text is split on whitespace into chunks and the resulting MP3 segments are
// concatenated (MP3 frames are self-delimiting, so simple concatenation
// plays back correctly).
package gtrans

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quincybot/quincy/pkg/audio"
	"github.com/quincybot/quincy/pkg/tts"
)

const (
	defaultBaseURL = "https://translate.google.com/translate_tts"
	defaultLang    = "en-uk"

	// maxChunkLen is the per-request character budget accepted by the endpoint.
	maxChunkLen = 200
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Synthesizer)(nil)

// languages lists the codes the endpoint accepts. A trimmed-down but
// representative set; unknown codes are rejected before any request is made.
var languages = map[string]string{
	"af":    "Afrikaans",
	"ar":    "Arabic",
	"cs":    "Czech",
	"da":    "Danish",
	"de":    "German",
	"el":    "Greek",
	"en":    "English",
	"en-au": "English (Australia)",
	"en-uk": "English (United Kingdom)",
	"en-us": "English (United States)",
	"es":    "Spanish",
	"fi":    "Finnish",
	"fr":    "French",
	"hi":    "Hindi",
	"hu":    "Hungarian",
	"id":    "Indonesian",
	"it":    "Italian",
	"ja":    "Japanese",
	"ko":    "Korean",
	"nl":    "Dutch",
	"no":    "Norwegian",
	"pl":    "Polish",
	"pt":    "Portuguese",
	"ro":    "Romanian",
	"ru":    "Russian",
	"sv":    "Swedish",
	"th":    "Thai",
	"tr":    "Turkish",
	"uk":    "Ukrainian",
	"vi":    "Vietnamese",
	"zh-cn": "Chinese (Mandarin)",
}

// Option is a functional option for configuring the [Synthesizer].
type Option func(*Synthesizer)

// WithBaseURL overrides the TTS endpoint. Useful in tests.
func WithBaseURL(baseURL string) Option {
	return func(s *Synthesizer) {
		s.baseURL = baseURL
	}
}

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Synthesizer) {
		s.client = c
	}
}

// WithDefaultLanguage sets the language used when Synthesize receives an
// empty language code. Default: "en-uk".
func WithDefaultLanguage(code string) Option {
	return func(s *Synthesizer) {
		s.defaultLang = code
	}
}

// Synthesizer implements [tts.Synthesizer] against the Google Translate TTS
// endpoint. Safe for concurrent use.
type Synthesizer struct {
	baseURL     string
	defaultLang string
	client      *http.Client
}

// New returns a Synthesizer configured with the supplied options.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		baseURL:     defaultBaseURL,
		defaultLang: defaultLang,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Synthesize implements [tts.Synthesizer]. The returned stream is MP3.
func (s *Synthesizer) Synthesize(ctx context.Context, text, languageCode string) (audio.Source, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("gtrans: empty text")
	}
	if languageCode == "" {
		languageCode = s.defaultLang
	}
	if _, ok := languages[strings.ToLower(languageCode)]; !ok {
		return nil, fmt.Errorf("%w: %q", tts.ErrUnsupportedLanguage, languageCode)
	}

	var buf bytes.Buffer
	for _, chunk := range splitText(text, maxChunkLen) {
		if err := s.fetchChunk(ctx, &buf, chunk, languageCode); err != nil {
			return nil, err
		}
	}
	return io.NopCloser(&buf), nil
}

// Languages implements [tts.Synthesizer]. The set is static; ctx is unused.
func (s *Synthesizer) Languages(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(languages))
	for k, v := range languages {
		out[k] = v
	}
	return out, nil
}

// fetchChunk requests one chunk of synthesized speech and appends the MP3
// body to buf.
func (s *Synthesizer) fetchChunk(ctx context.Context, buf *bytes.Buffer, chunk, lang string) error {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", chunk)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("gtrans: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("gtrans: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gtrans: unexpected status %s", resp.Status)
	}
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return fmt.Errorf("gtrans: read response: %w", err)
	}
	return nil
}

// splitText breaks text into whitespace-separated chunks of at most limit
// characters. A single word longer than the limit becomes its own chunk and
// is sent as-is.
func splitText(text string, limit int) []string {
	words := strings.Fields(text)
	var chunks []string
	var cur strings.Builder

	for _, w := range words {
		if cur.Len() > 0 && cur.Len()+1+len(w) > limit {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
