// Package llm is a minimal chat-completions client.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/oblivion-social/oblivion-api/internal/metrics"
)

// ErrEmptyCompletion 正文和推理字段里都取不到回复
var ErrEmptyCompletion = errors.New("llm returned an empty completion")

// APIError 非 2xx 响应
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("llm status %d: %s", e.Status, e.Message) }

type Config struct {
	Endpoint    string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// Complete sends messages and returns the assistant reply text.
func (c *Client) Complete(ctx context.Context, messages []Message) (reply string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveExternal("llm", "complete", start, err) }()

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("llm read: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return "", &APIError{Status: resp.StatusCode, Message: msg}
	}
	return ExtractReply(raw)
}

// ExtractReply 取 choices[0].message.content；为空时从 reasoning / reasoning_content 兜底
func ExtractReply(raw []byte) (string, error) {
	msg := gjson.GetBytes(raw, "choices.0.message")
	if content := strings.TrimSpace(msg.Get("content").String()); content != "" {
		return content, nil
	}
	for _, field := range []string{"reasoning", "reasoning_content"} {
		if reply := FromReasoning(msg.Get(field).String()); reply != "" {
			return reply, nil
		}
	}
	return "", ErrEmptyCompletion
}

var markerRe = regexp.MustCompile(`(?is)(?:reply|response|answer)\s*:\s*["“]([^"”]+)["”]`)

var paragraphRe = regexp.MustCompile(`\n\s*\n`)

// FromReasoning 带引号的 Reply:/Response:/Answer: 优先（取最后一个），否则取最后一段非空文本
func FromReasoning(reasoning string) string {
	reasoning = strings.TrimSpace(reasoning)
	if reasoning == "" {
		return ""
	}
	if m := markerRe.FindAllStringSubmatch(reasoning, -1); len(m) > 0 {
		if s := strings.TrimSpace(m[len(m)-1][1]); s != "" {
			return s
		}
	}
	parts := paragraphRe.Split(reasoning, -1)
	for i := len(parts) - 1; i >= 0; i-- {
		if p := strings.TrimSpace(parts[i]); p != "" {
			return strings.Trim(p, `"“”`)
		}
	}
	return ""
}
