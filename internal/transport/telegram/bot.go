// Package telegram implements the long-poll transport to the Telegram Bot
// API. It is a thin collaborator: every decision about the reply lives in
// the conversation layer behind the Handler.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// Handler resolves one inbound text message into the reply text and the
// pacing delay to observe before sending it.
type Handler func(ctx context.Context, userID int64, text string) (reply string, delay time.Duration)

// Options configures the bot transport.
type Options struct {
	Token          string
	BaseURL        string
	PollTimeoutSec int
	Client         *http.Client
	OnMessage      Handler
}

// Bot drives the getUpdates/sendMessage loop.
type Bot struct {
	token       string
	baseURL     string
	pollTimeout int
	client      *http.Client
	onMessage   Handler
}

// NewBot validates the options and applies defaults.
func NewBot(opts Options) (*Bot, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if opts.OnMessage == nil {
		return nil, fmt.Errorf("telegram message handler is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	pollTimeout := opts.PollTimeoutSec
	if pollTimeout <= 0 {
		pollTimeout = 30
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: time.Duration(pollTimeout+15) * time.Second}
	}

	return &Bot{
		token:       token,
		baseURL:     baseURL,
		pollTimeout: pollTimeout,
		client:      client,
		onMessage:   opts.OnMessage,
	}, nil
}

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message,omitempty"`
}

type message struct {
	From *user  `json:"from,omitempty"`
	Chat chat   `json:"chat"`
	Text string `json:"text"`
}

type user struct {
	ID int64 `json:"id"`
}

type chat struct {
	ID int64 `json:"id"`
}

type getUpdatesResponse struct {
	OK          bool     `json:"ok"`
	Description string   `json:"description,omitempty"`
	Result      []update `json:"result"`
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Run polls for updates until the context is cancelled. Poll errors back
// off exponentially up to 15s and never terminate the loop.
func (b *Bot) Run(ctx context.Context) error {
	log.Printf("[telegram] bot started (poll_timeout=%ds)", b.pollTimeout)

	var offset int64
	backoff := 2 * time.Second

	for {
		if ctx.Err() != nil {
			log.Printf("[telegram] interrupted; stopping")
			return nil
		}

		updates, nextOffset, err := b.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("[telegram] interrupted; stopping")
				return nil
			}
			log.Printf("[telegram] getUpdates failed: %v", err)
			if !sleepOrCancel(ctx, backoff) {
				return nil
			}
			if backoff < 15*time.Second {
				backoff *= 2
				if backoff > 15*time.Second {
					backoff = 15 * time.Second
				}
			}
			continue
		}
		backoff = 2 * time.Second

		for _, upd := range updates {
			msg := upd.Message
			if msg == nil || strings.TrimSpace(msg.Text) == "" {
				// Non-text events are ignored.
				continue
			}

			userID := msg.Chat.ID
			if msg.From != nil {
				userID = msg.From.ID
			}

			// One goroutine per update: the pacing delay and the model
			// calls of one user must never block other users.
			go b.handle(ctx, msg.Chat.ID, userID, msg.Text)
		}

		if nextOffset > offset {
			offset = nextOffset
		}
	}
}

func (b *Bot) handle(ctx context.Context, chatID, userID int64, text string) {
	reply, delay := b.onMessage(ctx, userID, text)
	if strings.TrimSpace(reply) == "" {
		return
	}

	if delay > 0 && !sleepOrCancel(ctx, delay) {
		return
	}

	if err := b.sendMessage(ctx, chatID, reply); err != nil {
		log.Printf("[telegram] sendMessage failed chat=%d: %v", chatID, err)
	}
}

func (b *Bot) getUpdates(ctx context.Context, offset int64) ([]update, int64, error) {
	endpoint := fmt.Sprintf("%s/bot%s/getUpdates", b.baseURL, b.token)
	values := url.Values{}
	values.Set("timeout", strconv.Itoa(b.pollTimeout))
	values.Set("allowed_updates", `["message"]`)
	if offset > 0 {
		values.Set("offset", strconv.FormatInt(offset, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, offset, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, offset, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, offset, fmt.Errorf("getUpdates http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload getUpdatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, offset, err
	}
	if !payload.OK {
		return nil, offset, fmt.Errorf("getUpdates rejected: %s", payload.Description)
	}

	nextOffset := offset
	for _, upd := range payload.Result {
		if upd.UpdateID >= nextOffset {
			nextOffset = upd.UpdateID + 1
		}
	}
	return payload.Result, nextOffset, nil
}

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", b.baseURL, b.token)
	payload, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return fmt.Errorf("sendMessage http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var res sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("sendMessage rejected: %s", res.Description)
	}
	return nil
}

// sleepOrCancel waits for d, returning false when the context wins.
func sleepOrCancel(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
