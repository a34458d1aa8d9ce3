package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Method string `json:"method"`
	Params struct {
		Contract string        `json:"contract"`
		Args     []interface{} `json:"args"`
	} `json:"params"`
}

func newGateway(t *testing.T, results map[string]string) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recorded
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		calls = append(calls, req)
		body, ok := results[req.Method]
		if !ok {
			body = `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{Endpoint: srv.URL, ContractAddress: "0xcontract", Timeout: time.Second})
	require.NoError(t, err)
	return c, &calls
}

func TestCreatePost(t *testing.T) {
	c, calls := newGateway(t, map[string]string{
		"create_post": `{"jsonrpc":"2.0","id":1,"result":"0xabc123"}`,
	})
	hash, err := c.CreatePost(context.Background(), "0xauthor", "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "0xabc123", hash)
	require.Len(t, *calls, 1)
	assert.Equal(t, "0xcontract", (*calls)[0].Params.Contract)
	assert.Equal(t, []interface{}{"0xauthor", "hello", ""}, (*calls)[0].Params.Args)
}

func TestCreatePostObjectResult(t *testing.T) {
	c, _ := newGateway(t, map[string]string{
		"create_post": `{"jsonrpc":"2.0","id":1,"result":{"transactionHash":"0xdef"}}`,
	})
	hash, err := c.CreatePost(context.Background(), "0xa", "x", "")
	require.NoError(t, err)
	assert.Equal(t, "0xdef", hash)
}

func TestRPCErrorSurfaces(t *testing.T) {
	c, _ := newGateway(t, map[string]string{})
	_, err := c.CreatePost(context.Background(), "0xa", "x", "")
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.EqualValues(t, -32601, rpcErr.Code)
}

func TestCampaigns(t *testing.T) {
	c, _ := newGateway(t, map[string]string{
		"get_campaign_count": `{"jsonrpc":"2.0","id":1,"result":"0x2"}`,
		"get_all_campaigns": `{"jsonrpc":"2.0","id":1,"result":[
			{"id":"0","owner":"0xABC","title":"Well","goal":"1000000000000000000000","amountCollected":"5","deadline":4102444800},
			{"title":"Old","goal":10,"deadline":"946684800","active":false}
		]}`,
		"get_campaign": `{"jsonrpc":"2.0","id":1,"result":null}`,
	})
	ctx := context.Background()

	n, err := c.GetCampaignCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	list, err := c.GetAllCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "0xabc", list[0].Creator)
	assert.Equal(t, "1000000000000000000000", list[0].Goal)
	assert.Equal(t, "5", list[0].Raised)
	assert.True(t, list[0].Active)
	assert.Equal(t, "1", list[1].ID)
	assert.Equal(t, "10", list[1].Goal)
	assert.False(t, list[1].Active)
	assert.Equal(t, 2000, list[1].Deadline.Year())

	_, err = c.GetCampaign(ctx, "9")
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestClosedClient(t *testing.T) {
	c, _ := newGateway(t, map[string]string{})
	require.NoError(t, c.Close())
	_, err := c.GetCampaignCount(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}
