package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "bookmarks", "nobody_naruto")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("SetGetDelete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "bookmarks", "u1_naruto", Fields{"userId": "u1", "slug": "naruto"}, false))

		doc, err := s.Get(ctx, "bookmarks", "u1_naruto")
		require.NoError(t, err)
		assert.Equal(t, "u1_naruto", doc.ID)
		assert.Equal(t, "naruto", doc.Fields["slug"])

		require.NoError(t, s.Delete(ctx, "bookmarks", "u1_naruto"))
		_, err = s.Get(ctx, "bookmarks", "u1_naruto")
		assert.True(t, errors.Is(err, ErrNotFound))

		// deleting twice is not an error
		require.NoError(t, s.Delete(ctx, "bookmarks", "u1_naruto"))
	})

	t.Run("SetMergeKeepsUntouchedFields", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "history", "u1_bleach", Fields{"title": "Bleach", "lastEpisodeSlug": "ep-1"}, true))
		require.NoError(t, s.Set(ctx, "history", "u1_bleach", Fields{"lastEpisodeSlug": "ep-2"}, true))

		doc, err := s.Get(ctx, "history", "u1_bleach")
		require.NoError(t, err)
		assert.Equal(t, "Bleach", doc.Fields["title"])
		assert.Equal(t, "ep-2", doc.Fields["lastEpisodeSlug"])
	})

	t.Run("SetWithoutMergeReplaces", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "history", "u1_bleach", Fields{"title": "Bleach", "poster": "p"}, false))
		require.NoError(t, s.Set(ctx, "history", "u1_bleach", Fields{"title": "Bleach TYBW"}, false))

		doc, err := s.Get(ctx, "history", "u1_bleach")
		require.NoError(t, err)
		assert.Equal(t, "Bleach TYBW", doc.Fields["title"])
		_, hasPoster := doc.Fields["poster"]
		assert.False(t, hasPoster)
	})

	t.Run("QueryFiltersAndOrders", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "history", "u1_a", Fields{"userId": "u1", "lastWatched": "2026-01-01T00:00:00.000000000Z"}, false))
		require.NoError(t, s.Set(ctx, "history", "u2_a", Fields{"userId": "u2", "lastWatched": "2026-01-05T00:00:00.000000000Z"}, false))
		require.NoError(t, s.Set(ctx, "history", "u1_b", Fields{"userId": "u1", "lastWatched": "2026-01-03T00:00:00.000000000Z"}, false))
		require.NoError(t, s.Set(ctx, "history", "u1_c", Fields{"userId": "u1", "lastWatched": "2026-01-02T00:00:00.000000000Z"}, false))

		docs, err := s.Query(ctx, "history", Query{
			Where:   []Filter{{Field: "userId", Value: "u1"}},
			OrderBy: "lastWatched",
			Desc:    true,
		})
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, []string{"u1_b", "u1_c", "u1_a"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})
	})

	t.Run("QueryFollowsChangedOwner", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "bookmarks", "x_naruto", Fields{"userId": "u1", "slug": "naruto"}, false))
		require.NoError(t, s.Set(ctx, "bookmarks", "x_naruto", Fields{"userId": "u2"}, true))

		u1, err := s.Query(ctx, "bookmarks", Query{Where: []Filter{{Field: "userId", Value: "u1"}}})
		require.NoError(t, err)
		assert.Empty(t, u1)

		u2, err := s.Query(ctx, "bookmarks", Query{Where: []Filter{{Field: "userId", Value: "u2"}}})
		require.NoError(t, err)
		require.Len(t, u2, 1)
		assert.Equal(t, "naruto", u2[0].Fields["slug"])

		require.NoError(t, s.Delete(ctx, "bookmarks", "x_naruto"))
		u2, err = s.Query(ctx, "bookmarks", Query{Where: []Filter{{Field: "userId", Value: "u2"}}})
		require.NoError(t, err)
		assert.Empty(t, u2)
	})

	t.Run("QueryWithoutOrderKeepsInsertionOrder", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"z", "a", "m"} {
			require.NoError(t, s.Set(ctx, "comments", id, Fields{"text": id}, false))
		}
		// overwriting keeps the original position
		require.NoError(t, s.Set(ctx, "comments", "z", Fields{"text": "z2"}, false))

		docs, err := s.Query(ctx, "comments", Query{})
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, []string{"z", "a", "m"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})
	})

	t.Run("QueryRejectsUnsafeField", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Query(ctx, "history", Query{OrderBy: "x'; DROP TABLE documents; --"})
		var perr *PersistenceError
		assert.True(t, errors.As(err, &perr))
	})

	t.Run("InsertGeneratesIDs", func(t *testing.T) {
		s := newStore(t)
		id1, err := s.Insert(ctx, "comments", Fields{"text": "first"})
		require.NoError(t, err)
		id2, err := s.Insert(ctx, "comments", Fields{"text": "second"})
		require.NoError(t, err)
		assert.NotEqual(t, id1, id2)

		doc, err := s.Get(ctx, "comments", id2)
		require.NoError(t, err)
		assert.Equal(t, "second", doc.Fields["text"])
	})

	t.Run("EmptyIDRejected", func(t *testing.T) {
		s := newStore(t)
		err := s.Set(ctx, "bookmarks", "", Fields{"x": "y"}, false)
		var perr *PersistenceError
		assert.True(t, errors.As(err, &perr))
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestRedisStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		return NewRedisStoreWithClient(client)
	})
}

func TestRedisStoreQueryReadsOnlyTheUsersDocuments(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewRedisStoreWithClient(client)

	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("other_%d", i)
		require.NoError(t, s.Set(ctx, "bookmarks", id, Fields{"userId": "other", "slug": id}, false))
	}
	require.NoError(t, s.Set(ctx, "bookmarks", "me_naruto", Fields{"userId": "me", "slug": "naruto"}, false))

	before := mr.CommandCount()
	docs, err := s.Query(ctx, "bookmarks", Query{Where: []Filter{{Field: "userId", Value: "me"}}})
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, "me_naruto", docs[0].ID)
	// one ZRANGE on the user's index and one MGET
	assert.LessOrEqual(t, mr.CommandCount()-before, 2)
}

func TestRedisStoreSurfacesPersistenceError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	s := NewRedisStoreWithClient(client)

	mr.Close()

	err := s.Set(context.Background(), "bookmarks", "u1_x", Fields{"a": "b"}, false)
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "set", perr.Op)
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := NewSQLStore(SQLite, filepath.Join(t.TempDir(), "arnime.db"))
		if err != nil {
			t.Skipf("sqlite unavailable: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		require.NoError(t, s.Migrate())
		return s
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	type bookmark struct {
		ID     string `json:"id,omitempty"`
		UserID string `json:"userId"`
		Slug   string `json:"slug"`
	}

	fields, err := Encode(bookmark{ID: "ignored", UserID: "u1", Slug: "naruto"})
	require.NoError(t, err)
	_, hasID := fields["id"]
	assert.False(t, hasID)

	var out bookmark
	require.NoError(t, Decode(Doc{ID: "u1_naruto", Fields: fields}, &out))
	assert.Equal(t, bookmark{ID: "u1_naruto", UserID: "u1", Slug: "naruto"}, out)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "cassandra"})
	assert.Error(t, err)

	_, err = Open(Options{Backend: BackendPostgres})
	assert.Error(t, err)

	s, err := Open(Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))
}
