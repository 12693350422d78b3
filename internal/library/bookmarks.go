package library

import (
	"context"
	"sync"
	"time"

	"arnime/internal/model"
	"arnime/internal/store"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// BookmarkInput describes the anime being liked
type BookmarkInput struct {
	Slug   string
	Title  string
	Poster string
	// Type is the coarse status tag, model.StatusComplete or model.StatusOngoing
	Type string
}

// LikeSet is the set of slugs a user has bookmarked, as shown on a page.
// Toggle updates it optimistically and restores it when the write fails.
type LikeSet struct {
	mu    sync.Mutex
	slugs map[string]bool
}

// NewLikeSet creates a LikeSet holding slugs
func NewLikeSet(slugs ...string) *LikeSet {
	s := &LikeSet{slugs: make(map[string]bool, len(slugs))}
	for _, slug := range slugs {
		s.slugs[slug] = true
	}
	return s
}

// Has reports whether slug is liked
func (s *LikeSet) Has(slug string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slugs[slug]
}

// Slugs returns the liked slugs as a lookup map
func (s *LikeSet) Slugs() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.slugs))
	for k := range s.slugs {
		out[k] = true
	}
	return out
}

func (s *LikeSet) flip(slug string) (liked bool, snapshot map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot = make(map[string]bool, len(s.slugs))
	for k := range s.slugs {
		snapshot[k] = true
	}

	if s.slugs[slug] {
		delete(s.slugs, slug)
		return false, snapshot
	}
	s.slugs[slug] = true
	return true, snapshot
}

func (s *LikeSet) restore(snapshot map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slugs = snapshot
}

// Bookmarks manages the bookmarks collection
type Bookmarks struct {
	store store.Store
	now   func() time.Time
}

// NewBookmarks creates a new Bookmarks
func NewBookmarks(s store.Store) *Bookmarks {
	return &Bookmarks{store: s, now: time.Now}
}

// IsLiked reports whether userID has bookmarked slug
func (b *Bookmarks) IsLiked(ctx context.Context, userID, slug string) (bool, error) {
	_, err := b.store.Get(ctx, model.CollectionBookmarks, model.DocumentID(userID, slug))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	}
	return false, errors.Wrap(err, "failed to load bookmark")
}

// List returns the user's bookmarks, newest first
func (b *Bookmarks) List(ctx context.Context, userID string) ([]model.Bookmark, error) {
	docs, err := b.store.Query(ctx, model.CollectionBookmarks, store.Query{
		Where:   []store.Filter{{Field: "userId", Value: userID}},
		OrderBy: "createdAt",
		Desc:    true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list bookmarks")
	}

	bookmarks := make([]model.Bookmark, 0, len(docs))
	for _, doc := range docs {
		var bm model.Bookmark
		if err := store.Decode(doc, &bm); err != nil {
			return nil, errors.Wrap(err, "failed to decode bookmark")
		}
		bookmarks = append(bookmarks, bm)
	}
	return bookmarks, nil
}

// Likes loads the user's liked slugs into a LikeSet
func (b *Bookmarks) Likes(ctx context.Context, userID string) (*LikeSet, error) {
	if userID == "" {
		return NewLikeSet(), nil
	}
	bookmarks, err := b.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	slugs := make([]string, len(bookmarks))
	for i, bm := range bookmarks {
		slugs[i] = bm.Slug
	}
	return NewLikeSet(slugs...), nil
}

// LikeState seeds a LikeSet with the single slug the caller is about to toggle
func (b *Bookmarks) LikeState(ctx context.Context, userID, slug string) (*LikeSet, error) {
	liked, err := b.IsLiked(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	if liked {
		return NewLikeSet(slug), nil
	}
	return NewLikeSet(), nil
}

// Toggle flips the like state of in.Slug in likes and persists it.
// On a failed write likes is rolled back to its state before the call.
func (b *Bookmarks) Toggle(ctx context.Context, likes *LikeSet, userID string, in BookmarkInput) (bool, error) {
	if userID == "" {
		return false, errors.New("sign in required")
	}

	liked, snapshot := likes.flip(in.Slug)
	id := model.DocumentID(userID, in.Slug)

	var err error
	if liked {
		err = b.put(ctx, id, userID, in)
	} else {
		err = b.store.Delete(ctx, model.CollectionBookmarks, id)
	}

	if err != nil {
		likes.restore(snapshot)
		log.Error().Err(err).Str("slug", in.Slug).Bool("liked", liked).Msg("Bookmark write failed, rolled back")
		return !liked, errors.Wrap(err, "failed to update favorites")
	}

	log.Debug().Str("slug", in.Slug).Bool("liked", liked).Msg("Bookmark toggled")
	return liked, nil
}

// Remove deletes a bookmark
func (b *Bookmarks) Remove(ctx context.Context, userID, slug string) error {
	if err := b.store.Delete(ctx, model.CollectionBookmarks, model.DocumentID(userID, slug)); err != nil {
		return errors.Wrap(err, "failed to remove bookmark")
	}
	return nil
}

func (b *Bookmarks) put(ctx context.Context, id, userID string, in BookmarkInput) error {
	tag := in.Type
	if tag != model.StatusComplete {
		tag = model.StatusOngoing
	}

	fields, err := store.Encode(model.Bookmark{
		UserID:    userID,
		Slug:      in.Slug,
		Title:     in.Title,
		Poster:    in.Poster,
		Type:      tag,
		CreatedAt: model.FormatTime(b.now()),
	})
	if err != nil {
		return err
	}
	return b.store.Set(ctx, model.CollectionBookmarks, id, fields, false)
}

// StatusTag returns the bookmark tag for an anime detail
func StatusTag(detail *model.AnimeDetail) string {
	if detail != nil && detail.Completed() {
		return model.StatusComplete
	}
	return model.StatusOngoing
}
