package gtrans_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quincybot/quincy/pkg/tts"
	"github.com/quincybot/quincy/pkg/tts/gtrans"
)

func TestSynthesizeRequestsEndpoint(t *testing.T) {
	t.Parallel()

	var gotLang, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.URL.Query().Get("tl")
		gotText = r.URL.Query().Get("q")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	s := gtrans.New(gtrans.WithBaseURL(srv.URL))
	src, err := s.Synthesize(context.Background(), "hello there", "en-uk")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	defer src.Close()

	body, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if string(body) != "mp3-bytes" {
		t.Errorf("stream = %q, want %q", body, "mp3-bytes")
	}
	if gotLang != "en-uk" {
		t.Errorf("tl = %q, want %q", gotLang, "en-uk")
	}
	if gotText != "hello there" {
		t.Errorf("q = %q, want %q", gotText, "hello there")
	}
}

func TestSynthesizeChunksLongText(t *testing.T) {
	t.Parallel()

	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if n := len(r.URL.Query().Get("q")); n > 200 {
			t.Errorf("chunk length %d exceeds endpoint limit", n)
		}
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	s := gtrans.New(gtrans.WithBaseURL(srv.URL))
	long := strings.Repeat("word ", 100) // ~500 chars
	src, err := s.Synthesize(context.Background(), long, "en")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	defer src.Close()

	body, _ := io.ReadAll(src)
	if requests < 2 {
		t.Errorf("request count = %d, want >= 2 for long text", requests)
	}
	if len(body) != requests {
		t.Errorf("concatenated body length = %d, want %d", len(body), requests)
	}
}

func TestSynthesizeUnknownLanguage(t *testing.T) {
	t.Parallel()

	s := gtrans.New(gtrans.WithBaseURL("http://invalid.localhost"))
	_, err := s.Synthesize(context.Background(), "hello", "klingon")
	if !errors.Is(err, tts.ErrUnsupportedLanguage) {
		t.Fatalf("err = %v, want tts.ErrUnsupportedLanguage", err)
	}
}

func TestSynthesizeEmptyLanguageUsesDefault(t *testing.T) {
	t.Parallel()

	var gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.URL.Query().Get("tl")
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	s := gtrans.New(gtrans.WithBaseURL(srv.URL), gtrans.WithDefaultLanguage("fr"))
	src, err := s.Synthesize(context.Background(), "bonjour", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	_ = src.Close()
	if gotLang != "fr" {
		t.Errorf("tl = %q, want %q", gotLang, "fr")
	}
}

func TestSynthesizeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := gtrans.New(gtrans.WithBaseURL(srv.URL))
	if _, err := s.Synthesize(context.Background(), "hello", "en"); err == nil {
		t.Fatal("Synthesize with failing server: want error")
	}
}

func TestLanguagesContainsDefaults(t *testing.T) {
	t.Parallel()

	langs, err := gtrans.New().Languages(context.Background())
	if err != nil {
		t.Fatalf("Languages: %v", err)
	}
	if _, ok := langs["en-uk"]; !ok {
		t.Error("language listing missing en-uk")
	}
	if len(langs) < 20 {
		t.Errorf("language listing has %d entries, want a substantial set", len(langs))
	}
}
