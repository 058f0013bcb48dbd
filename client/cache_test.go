package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consogab/server/internal/models"
)

func msg(id, sender, content string) *models.Message {
	return &models.Message{
		ID:             id,
		ConversationID: "conv-1",
		SenderID:       sender,
		Content:        content,
		Type:           models.MessageText,
		Status:         models.StatusSent,
	}
}

func TestCacheSnapshotRestore(t *testing.T) {
	c := NewCache(time.Minute)
	c.ResetPages("conv-1", []*models.Message{
		msg("m2", "u1", "deux"),
		msg("m1", "u2", "un"),
	}, false)
	c.AppendPage("conv-1", []*models.Message{msg("m0", "u2", "zéro")}, true)

	before := c.Messages("conv-1")
	snap := c.Snapshot("conv-1")

	c.PrependLatest("conv-1", &models.Message{
		ID:       "temp-abc",
		ClientID: "abc",
		SenderID: "u1",
		Content:  "brouillon",
		Status:   models.StatusSending,
	})
	require.Len(t, c.Messages("conv-1"), 4)

	c.Restore("conv-1", snap)

	after := c.Messages("conv-1")
	assert.Equal(t, before, after)
	assert.True(t, c.Exhausted("conv-1"))
	assert.Equal(t, 2, c.PageCount("conv-1"))
}

func TestCacheSnapshotRestoreEmptyScope(t *testing.T) {
	c := NewCache(time.Minute)
	snap := c.Snapshot("conv-9")
	c.PrependLatest("conv-9", msg("m1", "u1", "salut"))
	c.Restore("conv-9", snap)
	assert.Nil(t, c.Messages("conv-9"))
	assert.Equal(t, 0, c.PageCount("conv-9"))
}

func TestCacheReplaceByClientID(t *testing.T) {
	c := NewCache(time.Minute)
	provisional := &models.Message{
		ID:       "temp-xyz",
		ClientID: "xyz",
		SenderID: "u1",
		Content:  "bonjour",
		Status:   models.StatusSending,
	}
	c.ResetPages("conv-1", []*models.Message{provisional, msg("m1", "u2", "un")}, true)

	authoritative := msg("srv-77", "u1", "bonjour")
	authoritative.ClientID = "xyz"
	require.True(t, c.ReplaceByClientID("conv-1", "xyz", authoritative))

	all := c.Messages("conv-1")
	require.Len(t, all, 2)
	assert.Equal(t, "srv-77", all[0].ID)
	assert.Equal(t, models.StatusSent, all[0].Status)

	// no provisional entry left to match
	assert.False(t, c.ReplaceByClientID("conv-1", "other", authoritative))
	assert.False(t, c.ReplaceByClientID("conv-1", "", authoritative))
}

func TestCachePrependIfAbsentDeduplicates(t *testing.T) {
	c := NewCache(time.Minute)
	c.ResetPages("conv-1", []*models.Message{msg("m2", "u2", "deux")}, false)
	c.AppendPage("conv-1", []*models.Message{msg("m1", "u2", "un")}, true)

	// id cached on an older page: merge must be a no-op
	assert.False(t, c.PrependIfAbsent("conv-1", msg("m1", "u2", "un")))
	assert.Len(t, c.Messages("conv-1"), 2)

	assert.True(t, c.PrependIfAbsent("conv-1", msg("m3", "u2", "trois")))
	all := c.Messages("conv-1")
	require.Len(t, all, 3)
	assert.Equal(t, "m3", all[0].ID)
}

func TestCacheConversationStaleness(t *testing.T) {
	c := NewCache(20 * time.Millisecond)
	_, ok, _ := c.Conversations("u1")
	assert.False(t, ok)

	c.SetConversations("u1", []*models.Conversation{{ID: "conv-1"}})
	_, ok, fresh := c.Conversations("u1")
	assert.True(t, ok)
	assert.True(t, fresh)

	c.InvalidateConversations("u1")
	list, ok, fresh := c.Conversations("u1")
	assert.True(t, ok, "invalidation keeps data renderable")
	assert.False(t, fresh)
	assert.Len(t, list, 1)

	c.SetConversations("u1", []*models.Conversation{{ID: "conv-1"}})
	time.Sleep(30 * time.Millisecond)
	_, _, fresh = c.Conversations("u1")
	assert.False(t, fresh, "window elapsed")
}

func TestCacheReplaceFirstPageKeepsOlderPages(t *testing.T) {
	c := NewCache(time.Minute)
	c.ResetPages("conv-1", []*models.Message{msg("m3", "u1", "trois")}, false)
	c.AppendPage("conv-1", []*models.Message{msg("m1", "u1", "un")}, true)

	c.ReplaceFirstPage("conv-1", []*models.Message{
		msg("m4", "u1", "quatre"),
		msg("m3", "u1", "trois"),
	})
	all := c.Messages("conv-1")
	require.Len(t, all, 3)
	assert.Equal(t, "m4", all[0].ID)
	assert.Equal(t, "m1", all[2].ID)
}
