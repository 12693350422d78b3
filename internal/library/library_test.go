package library

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"arnime/internal/model"
	"arnime/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts writes and queries and can be told to fail writes
type countingStore struct {
	store.Store
	writes  int32
	queries int32
	fail    bool
}

func (s *countingStore) Query(ctx context.Context, collection string, q store.Query) ([]store.Doc, error) {
	atomic.AddInt32(&s.queries, 1)
	return s.Store.Query(ctx, collection, q)
}

func (s *countingStore) Set(ctx context.Context, collection, id string, fields store.Fields, merge bool) error {
	atomic.AddInt32(&s.writes, 1)
	if s.fail {
		return &store.PersistenceError{Op: "set", Collection: collection, ID: id, Err: errors.New("unavailable")}
	}
	return s.Store.Set(ctx, collection, id, fields, merge)
}

func (s *countingStore) Delete(ctx context.Context, collection, id string) error {
	atomic.AddInt32(&s.writes, 1)
	if s.fail {
		return &store.PersistenceError{Op: "delete", Collection: collection, ID: id, Err: errors.New("unavailable")}
	}
	return s.Store.Delete(ctx, collection, id)
}

func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func TestToggleTwiceLeavesNoBookmark(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	b := NewBookmarks(s)
	likes := NewLikeSet()
	in := BookmarkInput{Slug: "naruto", Title: "Naruto", Poster: "p.jpg", Type: model.StatusComplete}

	liked, err := b.Toggle(ctx, likes, "u1", in)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.True(t, likes.Has("naruto"))

	doc, err := s.Get(ctx, model.CollectionBookmarks, "u1_naruto")
	require.NoError(t, err)
	assert.Equal(t, "complete", doc.Fields["type"])
	assert.Equal(t, "u1", doc.Fields["userId"])

	liked, err = b.Toggle(ctx, likes, "u1", in)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.False(t, likes.Has("naruto"))

	ok, err := b.IsLiked(ctx, "u1", "naruto")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestToggleRollsBackOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	s := &countingStore{Store: store.NewMemoryStore(), fail: true}
	b := NewBookmarks(s)
	likes := NewLikeSet("bleach")

	liked, err := b.Toggle(ctx, likes, "u1", BookmarkInput{Slug: "naruto"})
	require.Error(t, err)
	var perr *store.PersistenceError
	assert.True(t, errors.As(err, &perr))
	assert.False(t, liked)
	assert.Equal(t, map[string]bool{"bleach": true}, likes.Slugs())

	liked, err = b.Toggle(ctx, likes, "u1", BookmarkInput{Slug: "bleach"})
	require.Error(t, err)
	assert.True(t, liked)
	assert.True(t, likes.Has("bleach"))
}

func TestToggleRequiresUser(t *testing.T) {
	s := &countingStore{Store: store.NewMemoryStore()}
	_, err := NewBookmarks(s).Toggle(context.Background(), NewLikeSet(), "", BookmarkInput{Slug: "naruto"})
	assert.Error(t, err)
	assert.Zero(t, s.writes)
}

func TestBookmarkTypeDefaultsToOngoing(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	b := NewBookmarks(s)

	_, err := b.Toggle(ctx, NewLikeSet(), "u1", BookmarkInput{Slug: "one-piece"})
	require.NoError(t, err)

	list, err := b.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatusOngoing, list[0].Type)
	assert.Equal(t, "u1_one-piece", list[0].ID)
}

func TestLikesAreScopedPerUser(t *testing.T) {
	ctx := context.Background()
	b := NewBookmarks(store.NewMemoryStore())
	_, err := b.Toggle(ctx, NewLikeSet(), "u1", BookmarkInput{Slug: "naruto"})
	require.NoError(t, err)
	_, err = b.Toggle(ctx, NewLikeSet(), "u2", BookmarkInput{Slug: "bleach"})
	require.NoError(t, err)

	likes, err := b.Likes(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"naruto": true}, likes.Slugs())

	empty, err := b.Likes(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, empty.Slugs())
}

func TestLikeStateLooksUpOneSlug(t *testing.T) {
	ctx := context.Background()
	s := &countingStore{Store: store.NewMemoryStore()}
	b := NewBookmarks(s)
	_, err := b.Toggle(ctx, NewLikeSet(), "u1", BookmarkInput{Slug: "naruto"})
	require.NoError(t, err)
	_, err = b.Toggle(ctx, NewLikeSet(), "u1", BookmarkInput{Slug: "bleach"})
	require.NoError(t, err)

	likes, err := b.LikeState(ctx, "u1", "naruto")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"naruto": true}, likes.Slugs())

	liked, err := b.Toggle(ctx, likes, "u1", BookmarkInput{Slug: "naruto"})
	require.NoError(t, err)
	assert.False(t, liked)

	likes, err = b.LikeState(ctx, "u1", "one-piece")
	require.NoError(t, err)
	assert.Empty(t, likes.Slugs())

	assert.Zero(t, atomic.LoadInt32(&s.queries))
}

func TestStatusTag(t *testing.T) {
	assert.Equal(t, model.StatusComplete, StatusTag(&model.AnimeDetail{Status: "Completed"}))
	assert.Equal(t, model.StatusOngoing, StatusTag(&model.AnimeDetail{Status: "Ongoing"}))
	assert.Equal(t, model.StatusOngoing, StatusTag(nil))
}

func TestHistorySignedOutWritesNothing(t *testing.T) {
	s := &countingStore{Store: store.NewMemoryStore()}
	h := NewHistory(s)

	for _, in := range []WatchInput{
		{Slug: "naruto", EntryLabel: "Episode 1", EntrySlug: "nrt-ep-1"},
		{Slug: "naruto", EntryLabel: "Batch", EntrySlug: "nrt-batch"},
		{Slug: "naruto", EntryLabel: "Lengkap", EntrySlug: "nrt-lengkap"},
	} {
		written, err := h.Record(context.Background(), "", in)
		require.NoError(t, err)
		assert.False(t, written)
	}
	assert.Zero(t, atomic.LoadInt32(&s.writes))
}

func TestHistoryMergeUpsertAndOrder(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(store.NewMemoryStore())
	h.now = fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := h.Record(ctx, "u1", WatchInput{Slug: "naruto", Title: "Naruto", Poster: "n.jpg", EntryLabel: "Episode 1", EntrySlug: "nrt-1"})
	require.NoError(t, err)
	_, err = h.Record(ctx, "u1", WatchInput{Slug: "bleach", Title: "Bleach", EntryLabel: "Episode 3", EntrySlug: "bl-3"})
	require.NoError(t, err)
	// later watch of naruto without title keeps the stored one
	_, err = h.Record(ctx, "u1", WatchInput{Slug: "naruto", EntryLabel: "Episode 2", EntrySlug: "nrt-2"})
	require.NoError(t, err)
	_, err = h.Record(ctx, "u2", WatchInput{Slug: "naruto", EntryLabel: "Episode 9", EntrySlug: "nrt-9"})
	require.NoError(t, err)

	entries, err := h.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "naruto", entries[0].Slug)
	assert.Equal(t, "Naruto", entries[0].Title)
	assert.Equal(t, "n.jpg", entries[0].Poster)
	assert.Equal(t, "nrt-2", entries[0].LastEpisodeSlug)
	assert.Equal(t, "bleach", entries[1].Slug)

	require.NoError(t, h.Delete(ctx, "u1", "bleach"))
	entries, err = h.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCreateCommentRejectsEmptyText(t *testing.T) {
	s := &countingStore{Store: store.NewMemoryStore()}
	c := NewComments(s)

	_, err := c.Create(context.Background(), CommentInput{Name: "x", Text: "   "})
	assert.True(t, errors.Is(err, ErrInvalidComment))

	docs, err := s.Query(context.Background(), model.CollectionComments, store.Query{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestCreateCommentRejectsOversizedFields(t *testing.T) {
	s := &countingStore{Store: store.NewMemoryStore()}
	c := NewComments(s)
	ctx := context.Background()

	cases := []struct {
		name string
		in   CommentInput
	}{
		{"text", CommentInput{Text: strings.Repeat("あ", MaxCommentText+1)}},
		{"name", CommentInput{Name: strings.Repeat("n", MaxCommentName+1), Text: "hi"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Create(ctx, tc.in)
			assert.True(t, errors.Is(err, ErrInvalidComment))
			assert.Contains(t, err.Error(), tc.name+" is longer than")
		})
	}
	docs, err := s.Query(ctx, model.CollectionComments, store.Query{})
	require.NoError(t, err)
	assert.Empty(t, docs)

	// limits count runes, not bytes
	_, err = c.Create(ctx, CommentInput{Name: strings.Repeat("名", MaxCommentName), Text: strings.Repeat("あ", MaxCommentText)})
	require.NoError(t, err)
}

func TestCreateCommentDefaultsAndParent(t *testing.T) {
	ctx := context.Background()
	c := NewComments(store.NewMemoryStore())
	c.now = fixedClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	root, err := c.Create(ctx, CommentInput{Text: " first! "})
	require.NoError(t, err)
	assert.Equal(t, AnonymousName, root.Name)
	assert.Equal(t, "first!", root.Text)
	assert.Nil(t, root.ParentID)
	assert.NotEmpty(t, root.ID)

	missing := "does-not-exist"
	_, err = c.Create(ctx, CommentInput{Text: "orphan", ParentID: &missing})
	assert.True(t, errors.Is(err, ErrUnknownParent))

	reply, err := c.Create(ctx, CommentInput{Name: "Rin", Text: "welcome", ParentID: &root.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, root.ID, *reply.ParentID)

	nested, err := c.Create(ctx, CommentInput{Text: "thanks", ParentID: &reply.ID})
	require.NoError(t, err)

	second, err := c.Create(ctx, CommentInput{Text: "another topic"})
	require.NoError(t, err)

	all, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{root.ID, reply.ID, nested.ID, second.ID},
		[]string{all[0].ID, all[1].ID, all[2].ID, all[3].ID})

	threads := Threads(all)
	require.Len(t, threads, 2)
	assert.Equal(t, root.ID, threads[0].Comment.ID)
	require.Len(t, threads[0].Replies, 2)
	assert.Equal(t, reply.ID, threads[0].Replies[0].ID)
	assert.Equal(t, nested.ID, threads[0].Replies[1].ID)
	assert.Equal(t, second.ID, threads[1].Comment.ID)
	assert.Empty(t, threads[1].Replies)
}

func TestThreadsTreatsOrphansAsRoots(t *testing.T) {
	gone := "gone"
	threads := Threads([]model.Comment{
		{ID: "a", Text: "hi", ParentID: &gone},
	})
	require.Len(t, threads, 1)
	assert.Equal(t, "a", threads[0].Comment.ID)
}
