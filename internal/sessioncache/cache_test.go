package sessioncache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kennyhq/kenny-memory/internal/model"
)

func TestCacheRoundTrip(t *testing.T) {
	c, err := New(100, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	conv := &model.Conversation{ConversationID: "c1", SessionID: "s1", UserID: "u1"}
	c.Put(conv)
	c.Wait()

	got, ok := c.Get("s1")
	require.True(t, ok)
	require.Equal(t, "c1", got.ConversationID)

	_, ok = c.Get("s2")
	require.False(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	c, err := New(100, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	c.Put(&model.Conversation{ConversationID: "c1", SessionID: "s1"})
	c.Wait()
	c.Invalidate("s1")
	c.Wait()

	_, ok := c.Get("s1")
	require.False(t, ok)
}

func TestCacheTTLExpiry(t *testing.T) {
	c, err := New(100, 20*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	c.Put(&model.Conversation{ConversationID: "c1", SessionID: "s1"})
	c.Wait()
	time.Sleep(50 * time.Millisecond)

	_, ok := c.Get("s1")
	require.False(t, ok)
}
