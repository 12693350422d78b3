package library

import (
	"context"
	"time"

	"arnime/internal/model"
	"arnime/internal/store"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// WatchInput is what the user opened: an episode, batch or full release
type WatchInput struct {
	Slug       string
	Title      string
	Poster     string
	EntryLabel string
	EntrySlug  string
}

// History manages the watch history collection
type History struct {
	store store.Store
	now   func() time.Time
}

// NewHistory creates a new History
func NewHistory(s store.Store) *History {
	return &History{store: s, now: time.Now}
}

// Record upserts the user's history entry for in.Slug.
// Without a user nothing is written and Record reports false.
func (h *History) Record(ctx context.Context, userID string, in WatchInput) (bool, error) {
	if userID == "" {
		return false, nil
	}

	entry := model.HistoryEntry{
		UserID:          userID,
		Slug:            in.Slug,
		Title:           in.Title,
		Poster:          in.Poster,
		LastEpisodeName: in.EntryLabel,
		LastEpisodeSlug: in.EntrySlug,
		LastWatched:     model.FormatTime(h.now()),
	}
	fields, err := store.Encode(entry)
	if err != nil {
		return false, errors.Wrap(err, "failed to encode history entry")
	}
	// a caller without title or poster must not blank the stored ones
	for _, key := range []string{"title", "poster"} {
		if fields[key] == "" {
			delete(fields, key)
		}
	}

	if err := h.store.Set(ctx, model.CollectionHistory, model.DocumentID(userID, in.Slug), fields, true); err != nil {
		return false, errors.Wrap(err, "failed to save watch history")
	}

	log.Debug().Str("slug", in.Slug).Str("entry", in.EntrySlug).Msg("Watch history recorded")
	return true, nil
}

// List returns the user's history, most recently watched first
func (h *History) List(ctx context.Context, userID string) ([]model.HistoryEntry, error) {
	docs, err := h.store.Query(ctx, model.CollectionHistory, store.Query{
		Where:   []store.Filter{{Field: "userId", Value: userID}},
		OrderBy: "lastWatched",
		Desc:    true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list watch history")
	}

	entries := make([]model.HistoryEntry, 0, len(docs))
	for _, doc := range docs {
		var e model.HistoryEntry
		if err := store.Decode(doc, &e); err != nil {
			return nil, errors.Wrap(err, "failed to decode history entry")
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Delete removes one history entry
func (h *History) Delete(ctx context.Context, userID, slug string) error {
	if err := h.store.Delete(ctx, model.CollectionHistory, model.DocumentID(userID, slug)); err != nil {
		return errors.Wrap(err, "failed to delete history entry")
	}
	return nil
}
