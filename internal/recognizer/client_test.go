package recognizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sorvik/glossa/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

// echoServer upgrades incoming connections and passes them to handle
func echoServer(t *testing.T, handle func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handle(conn)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialSendsStreamingConfigFirst(t *testing.T) {
	received := make(chan StartMessage, 1)
	srv := echoServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var start StartMessage
		if err := json.Unmarshal(data, &start); err != nil {
			t.Errorf("first message is not a start message: %v", err)
			return
		}
		received <- start
		// Keep the connection open until the client hangs up
		conn.ReadMessage()
	})
	defer srv.Close()

	dialer := NewDialer(Config{
		URL:             wsURL(srv),
		Language:        "en-US",
		SampleRate:      16000,
		MaxAlternatives: 1,
		InterimResults:  true,
		DialRetries:     1,
	}, testLogger(t))

	conn, err := dialer.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	select {
	case start := <-received:
		if start.Type != MessageTypeStart {
			t.Errorf("expected type %q, got %q", MessageTypeStart, start.Type)
		}
		if start.Config.SampleRateHertz != 16000 {
			t.Errorf("expected sample rate 16000, got %d", start.Config.SampleRateHertz)
		}
		if start.Config.LanguageCode != "en-US" {
			t.Errorf("expected language en-US, got %q", start.Config.LanguageCode)
		}
		if !start.Config.InterimResults {
			t.Error("expected interim results to be enabled")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the streaming config")
	}
}

func TestSendAudioDeliversBinaryFrames(t *testing.T) {
	frames := make(chan []byte, 1)
	srv := echoServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // start message
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage {
			t.Errorf("expected binary frame, got message type %d", mt)
		}
		frames <- data
	})
	defer srv.Close()

	dialer := NewDialer(Config{URL: wsURL(srv), DialRetries: 1}, testLogger(t))
	conn, err := dialer.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	payload := []byte{0x01, 0x02, 0x03, 0x04}
	if err := conn.SendAudio(payload); err != nil {
		t.Fatalf("SendAudio failed: %v", err)
	}

	select {
	case got := <-frames:
		if string(got) != string(payload) {
			t.Errorf("expected payload %v, got %v", payload, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the audio frame")
	}
}

func TestReceiveParsesResultsAndSkipsGarbage(t *testing.T) {
	srv := echoServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // start message
		conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		resp := Response{
			Type: MessageTypeResult,
			Results: []Result{{
				Alternatives: []Alternative{{Transcript: "hello world", Confidence: 0.92}},
				IsFinal:      true,
				ResultEndMs:  1500,
			}},
		}
		data, _ := json.Marshal(resp)
		conn.WriteMessage(websocket.TextMessage, data)
		conn.ReadMessage()
	})
	defer srv.Close()

	dialer := NewDialer(Config{URL: wsURL(srv), DialRetries: 1}, testLogger(t))
	conn, err := dialer.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	resp, err := conn.Receive()
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if resp.Type != MessageTypeResult {
		t.Errorf("expected type %q, got %q", MessageTypeResult, resp.Type)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}
	r := resp.Results[0]
	if !r.IsFinal {
		t.Error("expected a final result")
	}
	if r.ResultEndMs != 1500 {
		t.Errorf("expected result end 1500ms, got %d", r.ResultEndMs)
	}
	if len(r.Alternatives) != 1 || r.Alternatives[0].Transcript != "hello world" {
		t.Errorf("unexpected alternatives: %+v", r.Alternatives)
	}
}

func TestDialRetriesBeforeFailing(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dialer := NewDialer(Config{
		URL:          wsURL(srv),
		DialRetries:  3,
		DialInterval: 10 * time.Millisecond,
	}, testLogger(t))

	_, err := dialer.Dial(context.Background())
	if err == nil {
		t.Fatal("expected Dial to fail")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestCloseUnblocksReceive(t *testing.T) {
	srv := echoServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // start message
		conn.ReadMessage() // block until the client closes
	})
	defer srv.Close()

	dialer := NewDialer(Config{URL: wsURL(srv), DialRetries: 1}, testLogger(t))
	conn, err := dialer.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	errs := make(chan error, 1)
	go func() {
		_, err := conn.Receive()
		errs <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-errs:
		if err == nil {
			t.Error("expected Receive to return an error after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Receive did not return after Close")
	}

	// Second close is a no-op
	if err := conn.Close(); err != nil {
		t.Errorf("second Close returned error: %v", err)
	}
}
