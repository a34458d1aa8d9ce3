package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractReplyPrefersContent(t *testing.T) {
	got, err := ExtractReply([]byte(`{"choices":[{"message":{"content":"  hi there  ","reasoning":"Reply: \"nope\""}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "hi there", got)
}

func TestExtractReplyFallsBackToReasoning(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "quoted marker",
			body: `{"choices":[{"message":{"content":"","reasoning":"User asks about gas.\n\nDraft: Reply: \"too long\"\nFinal Answer: \"Gas is cheap today.\"\n\nDone."}}]}`,
			want: "Gas is cheap today.",
		},
		{
			name: "reasoning_content last paragraph",
			body: `{"choices":[{"message":{"content":null,"reasoning_content":"thinking...\n\n\"Nice post!\"\n\n   "}}]}`,
			want: "Nice post!",
		},
		{
			name: "response marker",
			body: `{"choices":[{"message":{"reasoning":"Response: \"gm\""}}]}`,
			want: "gm",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractReply([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractReplyEmpty(t *testing.T) {
	_, err := ExtractReply([]byte(`{"choices":[{"message":{"content":"","reasoning":"  "}}]}`))
	assert.ErrorIs(t, err, ErrEmptyCompletion)
	_, err = ExtractReply([]byte(`{"choices":[]}`))
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestCompleteSendsRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, APIKey: "sk-test", Model: "m1", MaxTokens: 50, Temperature: 0.2})
	reply, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)
	assert.Equal(t, "m1", got.Model)
	assert.Equal(t, 50, got.MaxTokens)
	assert.InDelta(t, 0.2, got.Temperature, 1e-9)
	assert.Equal(t, []Message{{Role: "user", Content: "hi"}}, got.Messages)
}

func TestCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{Endpoint: srv.URL}).Complete(context.Background(), nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "rate limited", apiErr.Message)
}
