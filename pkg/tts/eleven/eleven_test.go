package eleven_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coder/websocket"

	"github.com/quincybot/quincy/pkg/audio"
	"github.com/quincybot/quincy/pkg/tts"
	"github.com/quincybot/quincy/pkg/tts/eleven"
)

// fakeService upgrades incoming connections, records the frames it receives,
// and streams back the configured PCM chunks as base64 audio messages.
func fakeService(t *testing.T, chunks [][]byte, gotFrames *[]map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()
		// Handshake, text, then end-of-stream marker.
		for i := 0; i < 3; i++ {
			_, data, err := conn.Read(ctx)
			if err != nil {
				t.Errorf("read frame %d: %v", i, err)
				return
			}
			var frame map[string]any
			if err := json.Unmarshal(data, &frame); err != nil {
				t.Errorf("decode frame %d: %v", i, err)
				return
			}
			*gotFrames = append(*gotFrames, frame)
		}

		for i, chunk := range chunks {
			msg := map[string]any{
				"audio":   base64.StdEncoding.EncodeToString(chunk),
				"isFinal": i == len(chunks)-1,
			}
			data, _ := json.Marshal(msg)
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				t.Errorf("write chunk %d: %v", i, err)
				return
			}
		}
	}))
}

func TestSynthesizeCollectsChunks(t *testing.T) {
	t.Parallel()

	var frames []map[string]any
	srv := fakeService(t, [][]byte{{1, 2, 3, 4}, {5, 6}}, &frames)
	defer srv.Close()

	s, err := eleven.New("test-key", eleven.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	src, err := s.Synthesize(context.Background(), "hello world", "en")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	defer src.Close()

	pcm, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	want := []byte{1, 2, 3, 4, 5, 6}
	if string(pcm) != string(want) {
		t.Errorf("pcm = %v, want %v", pcm, want)
	}

	ps, ok := src.(audio.PCMSource)
	if !ok {
		t.Fatal("source does not declare a PCM format")
	}
	if got, want := ps.Format(), (audio.Format{SampleRate: 16000, Channels: 1}); got != want {
		t.Errorf("format = %+v, want %+v", got, want)
	}

	if len(frames) != 3 {
		t.Fatalf("frame count = %d, want 3", len(frames))
	}
	if key, _ := frames[0]["xi_api_key"].(string); key != "test-key" {
		t.Errorf("handshake api key = %q, want %q", key, "test-key")
	}
	if text, _ := frames[1]["text"].(string); text != "hello world " {
		t.Errorf("text frame = %q, want %q", text, "hello world ")
	}
	if eos, _ := frames[2]["text"].(string); eos != "" {
		t.Errorf("end-of-stream frame text = %q, want empty", eos)
	}
}

func TestSynthesizeUnsupportedLanguage(t *testing.T) {
	t.Parallel()

	s, err := eleven.New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = s.Synthesize(context.Background(), "hello", "xx")
	if !errors.Is(err, tts.ErrUnsupportedLanguage) {
		t.Fatalf("err = %v, want tts.ErrUnsupportedLanguage", err)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	t.Parallel()

	s, err := eleven.New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Synthesize(context.Background(), "   ", "en"); err == nil {
		t.Fatal("Synthesize with blank text: want error")
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := eleven.New(""); err == nil {
		t.Fatal("New with empty key: want error")
	}
}

func TestLanguages(t *testing.T) {
	t.Parallel()

	s, err := eleven.New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	langs, err := s.Languages(context.Background())
	if err != nil {
		t.Fatalf("Languages: %v", err)
	}
	if _, ok := langs["en"]; !ok {
		t.Error("language listing missing en")
	}
	if len(langs) < 20 {
		t.Errorf("language listing has %d entries, want a substantial set", len(langs))
	}
}
