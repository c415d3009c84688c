package toolrpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abhishec/purple-agent/internal/taskerr"
)

func TestClient_Discover_NotConnectedReturnsToolCallError(t *testing.T) {
	c := NewClient("http://unused.invalid")
	_, err := c.Discover(context.Background())
	assert.Error(t, err)
	assert.True(t, taskerr.Is(err, taskerr.KindToolCall))
}

func TestClient_Call_NotConnectedReturnsToolCallError(t *testing.T) {
	c := NewClient("http://unused.invalid")
	_, err := c.Call(context.Background(), "get_account", map[string]any{"id": "1"})
	assert.Error(t, err)
	assert.True(t, taskerr.Is(err, taskerr.KindToolCall))
}

func TestClient_Close_NeverConnectedIsNoop(t *testing.T) {
	c := NewClient("http://unused.invalid")
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close(), "Close must be safe to call more than once")
}
