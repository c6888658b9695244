package voskws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/voxinput/voxinput/pkg/recognizer"
)

// fakeServer speaks the vosk-server lock-step protocol: it records the
// configuration message, then answers every binary chunk with the next
// scripted reply and the EOF marker with finalReply.
type fakeServer struct {
	replies    []string
	finalReply string

	mu        sync.Mutex
	configMsg string
	chunks    int
}

func (f *fakeServer) config() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configMsg
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	ctx := r.Context()

	// First message is the configuration.
	typ, msg, err := conn.Read(ctx)
	if err != nil || typ != websocket.MessageText {
		return
	}
	f.mu.Lock()
	f.configMsg = string(msg)
	f.mu.Unlock()

	for {
		typ, msg, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ == websocket.MessageText && strings.Contains(string(msg), "eof") {
			_ = conn.Write(ctx, websocket.MessageText, []byte(f.finalReply))
			continue
		}
		f.mu.Lock()
		f.chunks++
		f.mu.Unlock()
		reply := `{"partial": ""}`
		if len(f.replies) > 0 {
			reply = f.replies[0]
			f.replies = f.replies[1:]
		}
		if err := conn.Write(ctx, websocket.MessageText, []byte(reply)); err != nil {
			return
		}
	}
}

func startServer(t *testing.T, f *fakeServer) string {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testDial(t *testing.T, url string) *Decoder {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, err := Dial(ctx, url, WithOpTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDial_EmptyURL(t *testing.T) {
	if _, err := Dial(context.Background(), ""); err == nil {
		t.Error("expected error for empty URL")
	}
}

func TestDial_SendsConfig(t *testing.T) {
	f := &fakeServer{}
	d := testDial(t, startServer(t, f))

	// One round trip forces the server to have consumed the config.
	if _, err := d.Accept(make([]byte, 320)); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got := f.config(); !strings.Contains(got, `"sample_rate": 16000`) {
		t.Errorf("config message = %q, want default sample rate", got)
	}
}

func TestAccept_PartialThenFinal(t *testing.T) {
	f := &fakeServer{replies: []string{
		`{"partial": "hello"}`,
		`{"partial": "hello wor"}`,
		`{"text": "hello world"}`,
	}}
	d := testDial(t, startServer(t, f))

	chunk := make([]byte, 320)

	final, err := d.Accept(chunk)
	if err != nil || final {
		t.Fatalf("Accept 1 = final %v, err %v; want interim", final, err)
	}
	if p, _ := d.Partial(); p != "hello" {
		t.Errorf("Partial = %q, want %q", p, "hello")
	}

	if _, err := d.Accept(chunk); err != nil {
		t.Fatalf("Accept 2: %v", err)
	}

	final, err = d.Accept(chunk)
	if err != nil {
		t.Fatalf("Accept 3: %v", err)
	}
	if !final {
		t.Fatal("Accept 3 should report a finalised utterance")
	}
	text, err := d.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if text != "hello world" {
		t.Errorf("Result = %q, want %q", text, "hello world")
	}

	// The final reply clears the interim hypothesis.
	if p, _ := d.Partial(); p != "" {
		t.Errorf("Partial after final = %q, want empty", p)
	}
}

func TestFinalResult_FlushesTrailingUtterance(t *testing.T) {
	f := &fakeServer{
		replies:    []string{`{"partial": "unfinished"}`},
		finalReply: `{"text": "unfinished thought"}`,
	}
	d := testDial(t, startServer(t, f))

	if _, err := d.Accept(make([]byte, 320)); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	text, err := d.FinalResult()
	if err != nil {
		t.Fatalf("FinalResult: %v", err)
	}
	if text != "unfinished thought" {
		t.Errorf("FinalResult = %q, want %q", text, "unfinished thought")
	}
}

func TestDecoder_ClosedErrors(t *testing.T) {
	f := &fakeServer{}
	d := testDial(t, startServer(t, f))

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Double close is a no-op.
	if err := d.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, err := d.Accept(nil); err != recognizer.ErrDecoderClosed {
		t.Errorf("Accept after close = %v, want ErrDecoderClosed", err)
	}
	if _, err := d.FinalResult(); err != recognizer.ErrDecoderClosed {
		t.Errorf("FinalResult after close = %v, want ErrDecoderClosed", err)
	}
}
