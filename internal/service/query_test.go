package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-brain/backend/pkg/cache"
	"chat-brain/backend/pkg/errors"
	"chat-brain/backend/pkg/logger"
)

func newTestQueryService(st *fakeStore, withCache bool) *QueryService {
	log := logger.New(logger.Config{Level: "error"})
	var c Cache
	if withCache {
		c = cache.New(cache.Options{
			DefaultExpiration: time.Minute,
			CleanupInterval:   time.Minute,
			MaxItems:          100,
		})
	}
	return NewQueryService(st, c, time.Minute, log)
}

func TestGetConversationNotFound(t *testing.T) {
	q := newTestQueryService(newFakeStore(), false)

	_, err := q.GetConversation(context.Background(), "no-such-id")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestGetConversationOwnership(t *testing.T) {
	st := newFakeStore()
	conversation := st.seedConversation("user-1", "telegram")
	q := newTestQueryService(st, false)
	ctx := context.Background()

	got, err := q.GetConversationForUser(ctx, conversation.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, conversation.ID, got.ID)

	_, err = q.GetConversationForUser(ctx, conversation.ID, "user-2")
	assert.True(t, errors.IsCode(err, errors.CodeForbidden))
}

func TestGetConversationCached(t *testing.T) {
	st := newFakeStore()
	conversation := st.seedConversation("user-1", "telegram")
	q := newTestQueryService(st, true)
	ctx := context.Background()

	first, err := q.GetConversation(ctx, conversation.ID)
	require.NoError(t, err)

	// Mutate the backing store; the cached copy still serves
	require.NoError(t, st.CloseConversation(ctx, conversation.ID))

	second, err := q.GetConversation(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, first.IsActive, second.IsActive)
	assert.True(t, second.IsActive)
}

func TestListConversationsPagination(t *testing.T) {
	st := newFakeStore()
	for i := 0; i < 5; i++ {
		st.seedConversation(fmt.Sprintf("other-%d", i), "telegram")
	}
	// 5 conversations for user-1, closing each before seeding the next so
	// the one-active-per-user rule holds
	var ids []string
	for i := 0; i < 5; i++ {
		c := st.seedConversation("user-1", "telegram")
		ids = append(ids, c.ID)
		if i < 4 {
			require.NoError(t, st.CloseConversation(context.Background(), c.ID))
		}
	}

	q := newTestQueryService(st, false)
	ctx := context.Background()

	page, err := q.ListConversations(ctx, "user-1", true, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.TotalCount)
	assert.Len(t, page.Conversations, 2)
	assert.True(t, page.HasMore)
	// Newest first
	assert.Equal(t, ids[4], page.Conversations[0].ID)
	assert.Equal(t, ids[3], page.Conversations[1].ID)

	page, err = q.ListConversations(ctx, "user-1", true, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Conversations, 1)
	assert.False(t, page.HasMore)

	// Page past the end is empty, not an error
	page, err = q.ListConversations(ctx, "user-1", true, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Conversations)
	assert.False(t, page.HasMore)

	// Active only
	page, err = q.ListConversations(ctx, "user-1", false, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalCount)
	assert.Len(t, page.Conversations, 1)
}

func TestListConversationsClampsInput(t *testing.T) {
	st := newFakeStore()
	st.seedConversation("user-1", "telegram")
	q := newTestQueryService(st, false)

	page, err := q.ListConversations(context.Background(), "user-1", true, -3, 500)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Page)
	assert.Equal(t, 100, page.PageSize)
}

func TestGetConversationMessagesHasMoreHeuristic(t *testing.T) {
	st := newFakeStore()
	conversation := st.seedConversation("user-1", "telegram")
	for i := 0; i < 4; i++ {
		st.seedMessage(conversation.ID, "user-1", fmt.Sprintf("msg %d", i))
	}

	q := newTestQueryService(st, false)
	ctx := context.Background()

	page, err := q.GetConversationMessages(ctx, conversation.ID, "user-1", 0, 2)
	require.NoError(t, err)
	assert.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "msg 0", page.Messages[0].Content)

	// Full final page still reports has_more — the documented trade-off of
	// skipping the count query
	page, err = q.GetConversationMessages(ctx, conversation.ID, "user-1", 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)

	page, err = q.GetConversationMessages(ctx, conversation.ID, "user-1", 4, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.False(t, page.HasMore)
}

func TestGetConversationMessagesForbidden(t *testing.T) {
	st := newFakeStore()
	conversation := st.seedConversation("user-1", "telegram")
	q := newTestQueryService(st, false)

	_, err := q.GetConversationMessages(context.Background(), conversation.ID, "intruder", 0, 10)
	assert.True(t, errors.IsCode(err, errors.CodeForbidden))
}

func TestCloseConversation(t *testing.T) {
	st := newFakeStore()
	conversation := st.seedConversation("user-1", "telegram")
	q := newTestQueryService(st, true)
	ctx := context.Background()

	// Prime the cache, then close: the cached copy must be invalidated
	_, err := q.GetConversation(ctx, conversation.ID)
	require.NoError(t, err)

	require.NoError(t, q.CloseConversation(ctx, conversation.ID, "user-1"))

	got, err := q.GetConversation(ctx, conversation.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.NotNil(t, got.EndedAt)

	err = q.CloseConversation(ctx, conversation.ID, "user-2")
	assert.True(t, errors.IsCode(err, errors.CodeForbidden))
}
