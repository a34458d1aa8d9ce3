// Package chain talks to the contract gateway over JSON-RPC.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/oblivion-social/oblivion-api/internal/metrics"
)

var (
	ErrClosed           = errors.New("chain client is closed")
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrNoTxHash         = errors.New("gateway returned no transaction hash")
)

// RPCError 网关返回的 JSON-RPC 错误
type RPCError struct {
	Code    int64
	Message string
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// Config 网关配置
type Config struct {
	Endpoint        string
	ContractAddress string
	Timeout         time.Duration
}

// Campaign 链上众筹活动；金额为十进制字符串
type Campaign struct {
	ID          string    `json:"id"`
	Creator     string    `json:"creator"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Goal        string    `json:"goal"`
	Raised      string    `json:"raised"`
	Deadline    time.Time `json:"deadline"`
	Active      bool      `json:"active"`
}

// Client JSON-RPC 合约客户端
type Client struct {
	mu     sync.RWMutex
	config Config
	http   *http.Client
	closed bool
	nextID atomic.Int64
}

func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("chain endpoint is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{config: config, http: &http.Client{Timeout: config.Timeout}}, nil
}

// CreatePost anchors a post through the contract and returns the transaction hash.
func (c *Client) CreatePost(ctx context.Context, author, content, image string) (string, error) {
	result, err := c.call(ctx, "create_post", author, content, image)
	if err != nil {
		return "", err
	}
	hash := result.String()
	if result.IsObject() {
		hash = firstString(result, "txHash", "transactionHash", "hash", "txid")
	}
	if hash == "" {
		return "", ErrNoTxHash
	}
	return hash, nil
}

func (c *Client) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	result, err := c.call(ctx, "get_campaign", id)
	if err != nil {
		return nil, err
	}
	if !result.Exists() || result.Type == gjson.Null {
		return nil, ErrCampaignNotFound
	}
	cp := parseCampaign(result)
	if cp.ID == "" {
		cp.ID = id
	}
	return cp, nil
}

func (c *Client) GetAllCampaigns(ctx context.Context) ([]*Campaign, error) {
	result, err := c.call(ctx, "get_all_campaigns")
	if err != nil {
		return nil, err
	}
	items := result.Array()
	out := make([]*Campaign, 0, len(items))
	for i, item := range items {
		cp := parseCampaign(item)
		if cp.ID == "" {
			cp.ID = strconv.Itoa(i)
		}
		out = append(out, cp)
	}
	return out, nil
}

func (c *Client) GetCampaignCount(ctx context.Context) (int64, error) {
	result, err := c.call(ctx, "get_campaign_count")
	if err != nil {
		return 0, err
	}
	return parseInt(result)
}

// Close 之后的调用都返回 ErrClosed
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.http.CloseIdleConnections()
	return nil
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int64     `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Contract string        `json:"contract,omitempty"`
	Args     []interface{} `json:"args"`
}

func (c *Client) call(ctx context.Context, method string, args ...interface{}) (result gjson.Result, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return gjson.Result{}, ErrClosed
	}

	start := time.Now()
	defer func() { metrics.ObserveExternal("chain", method, start, err) }()

	if args == nil {
		args = []interface{}{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  rpcParams{Contract: c.config.ContractAddress, Args: args},
	})
	if err != nil {
		return gjson.Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: read response: %w", method, err)
	}
	if resp.StatusCode/100 != 2 {
		return gjson.Result{}, fmt.Errorf("%s: gateway status %d", method, resp.StatusCode)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("%s: malformed response", method)
	}

	doc := gjson.ParseBytes(raw)
	if e := doc.Get("error"); e.Exists() && e.Type != gjson.Null {
		return gjson.Result{}, &RPCError{Code: e.Get("code").Int(), Message: e.Get("message").String()}
	}
	return doc.Get("result"), nil
}

func parseCampaign(r gjson.Result) *Campaign {
	cp := &Campaign{
		ID:          firstString(r, "id", "campaignId"),
		Creator:     strings.ToLower(firstString(r, "creator", "owner")),
		Title:       firstString(r, "title", "name"),
		Description: firstString(r, "description"),
		ImageURL:    firstString(r, "image", "imageUrl"),
		Goal:        firstString(r, "goal", "target"),
		Raised:      firstString(r, "raised", "amountRaised", "amountCollected"),
	}
	if d := firstField(r, "deadline", "endTime"); d.Exists() {
		if secs, err := parseInt(d); err == nil && secs > 0 {
			cp.Deadline = time.Unix(secs, 0).UTC()
		}
	}
	if a := r.Get("active"); a.Exists() {
		cp.Active = a.Bool()
	} else {
		cp.Active = cp.Deadline.IsZero() || cp.Deadline.After(time.Now())
	}
	return cp
}

func firstField(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func firstString(r gjson.Result, keys ...string) string {
	v := firstField(r, keys...)
	if v.Type == gjson.Number {
		// 保留原始数字文本，避免大整数转 float 丢精度
		return v.Raw
	}
	return v.String()
}

// parseInt 兼容数字、十进制字符串和 0x 十六进制
func parseInt(r gjson.Result) (int64, error) {
	switch r.Type {
	case gjson.Number:
		return strconv.ParseInt(r.Raw, 10, 64)
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			return strconv.ParseInt(s[2:], 16, 64)
		}
		return strconv.ParseInt(s, 10, 64)
	}
	return 0, fmt.Errorf("unexpected value %q", r.Raw)
}
