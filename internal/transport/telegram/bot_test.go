package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewBotValidation(t *testing.T) {
	if _, err := NewBot(Options{OnMessage: func(context.Context, int64, string) (string, time.Duration) { return "", 0 }}); err == nil {
		t.Fatal("expected error for missing token")
	}
	if _, err := NewBot(Options{Token: "abc"}); err == nil {
		t.Fatal("expected error for missing handler")
	}
}

func TestRunDispatchesTextUpdates(t *testing.T) {
	var polls int32
	var handled int32
	sentCh := make(chan sendMessageRequest, 4)
	offsetCh := make(chan string, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			n := atomic.AddInt32(&polls, 1)
			offsetCh <- r.URL.Query().Get("offset")
			w.Header().Set("Content-Type", "application/json")
			if n == 1 {
				// One text message, one non-text update, one empty-text message.
				w.Write([]byte(`{"ok":true,"result":[
					{"update_id":10,"message":{"from":{"id":42},"chat":{"id":42},"text":"hola"}},
					{"update_id":11},
					{"update_id":12,"message":{"from":{"id":43},"chat":{"id":43},"text":""}}
				]}`))
				return
			}
			w.Write([]byte(`{"ok":true,"result":[]}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var req sendMessageRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode sendMessage: %v", err)
			}
			sentCh <- req
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ok":true}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	handler := func(_ context.Context, userID int64, text string) (string, time.Duration) {
		atomic.AddInt32(&handled, 1)
		if userID != 42 || text != "hola" {
			t.Errorf("handler got userID=%d text=%q", userID, text)
		}
		return "¡Bendiciones!", 5 * time.Millisecond
	}

	bot, err := NewBot(Options{Token: "test-token", BaseURL: srv.URL, PollTimeoutSec: 1, OnMessage: handler})
	if err != nil {
		t.Fatalf("NewBot err: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = bot.Run(ctx)
		close(done)
	}()

	select {
	case sent := <-sentCh:
		if sent.ChatID != 42 || sent.Text != "¡Bendiciones!" {
			t.Fatalf("unexpected outbound message: %+v", sent)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sendMessage")
	}

	// First poll has no offset; a later poll must acknowledge update 12.
	if first := <-offsetCh; first != "" {
		t.Fatalf("first poll should carry no offset, got %q", first)
	}
	select {
	case second := <-offsetCh:
		if second != "13" {
			t.Fatalf("expected offset 13 after update 12, got %q", second)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for second poll")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}

	if got := atomic.LoadInt32(&handled); got != 1 {
		t.Fatalf("handler must run once (text updates only), ran %d times", got)
	}
}

func TestRunRecoversFromPollErrors(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":[]}`))
	}))
	defer srv.Close()

	bot, err := NewBot(Options{
		Token:          "test-token",
		BaseURL:        srv.URL,
		PollTimeoutSec: 1,
		OnMessage:      func(context.Context, int64, string) (string, time.Duration) { return "", 0 },
	})
	if err != nil {
		t.Fatalf("NewBot err: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = bot.Run(ctx)
		close(done)
	}()

	deadline := time.After(10 * time.Second)
	for atomic.LoadInt32(&polls) < 2 {
		select {
		case <-deadline:
			t.Fatal("poll loop did not recover from the error")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
