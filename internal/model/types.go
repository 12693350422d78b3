package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ================== Common responses ==================

// APIResponse is the standard API response format
type APIResponse struct {
	Code    int    `json:"code"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Pagination holds browse pagination state
type Pagination struct {
	Page    int  `json:"page"`
	HasMore bool `json:"hasMore"`
}

// ================== Anime API shapes ==================

// AnimeSummary is one entry of a list, search or genre result
type AnimeSummary struct {
	Title             string `json:"title"`
	Slug              string `json:"slug"`
	Poster            string `json:"poster"`
	CurrentEpisode    string `json:"current_episode,omitempty"`
	ReleaseDay        string `json:"release_day,omitempty"`
	TotalEpisode      string `json:"total_episode,omitempty"`
	Rating            string `json:"rating,omitempty"`
	EpisodeCount      string `json:"episode_count,omitempty"`
	Season            string `json:"season,omitempty"`
	Studio            string `json:"studio,omitempty"`
	NewestReleaseDate string `json:"newest_release_date,omitempty"`
}

// Genre is a filterable genre
type Genre struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// EpisodeRef links to an episode, batch or full release
type EpisodeRef struct {
	Label string `json:"episode"`
	Slug  string `json:"slug"`
}

// AnimeDetail is the detail payload of one anime
type AnimeDetail struct {
	Title        string       `json:"title"`
	Japanese     string       `json:"japanese,omitempty"`
	Poster       string       `json:"poster"`
	Score        string       `json:"score,omitempty"`
	Producer     string       `json:"producer,omitempty"`
	Type         string       `json:"tipe,omitempty"`
	Status       string       `json:"status,omitempty"`
	TotalEpisode string       `json:"total_episode,omitempty"`
	Duration     string       `json:"duration,omitempty"`
	ReleaseDate  string       `json:"release_date,omitempty"`
	Studio       string       `json:"studio,omitempty"`
	Genre        string       `json:"genre,omitempty"`
	Synopsis     string       `json:"synopsis,omitempty"`
	Episodes     []EpisodeRef `json:"episodes,omitempty"`
	Batch        []EpisodeRef `json:"batch,omitempty"`
	Lengkap      []EpisodeRef `json:"lengkap,omitempty"`
}

// Completed reports whether the upstream marks the anime as finished
func (d *AnimeDetail) Completed() bool {
	return d.Status == "Completed"
}

// Mirror is an alternate video source; Content is the opaque token
// exchanged for a player URL
type Mirror struct {
	Name    string `json:"nama"`
	Content string `json:"content"`
}

// DownloadLink is one provider link of a download group
type DownloadLink struct {
	Provider string `json:"provider"`
	Link     string `json:"link"`
}

// SlugRef is a bare slug reference
type SlugRef struct {
	Slug string `json:"slug"`
}

// EpisodeDetail is the playback payload of one episode
type EpisodeDetail struct {
	Title              string               `json:"title"`
	StreamURL          string               `json:"stream_url,omitempty"`
	Mirrors            Groups[Mirror]       `json:"mirror,omitempty"`
	Downloads          Groups[DownloadLink] `json:"download,omitempty"`
	HasNextEpisode     bool                 `json:"has_next_episode"`
	NextEpisode        *SlugRef             `json:"next_episode,omitempty"`
	HasPreviousEpisode bool                 `json:"has_previous_episode"`
	PreviousEpisode    *SlugRef             `json:"previous_episode,omitempty"`
}

// NextSlug returns the next episode slug, or "" when there is none
func (e *EpisodeDetail) NextSlug() string {
	if !e.HasNextEpisode || e.NextEpisode == nil {
		return ""
	}
	return e.NextEpisode.Slug
}

// PreviousSlug returns the previous episode slug, or "" when there is none
func (e *EpisodeDetail) PreviousSlug() string {
	if !e.HasPreviousEpisode || e.PreviousEpisode == nil {
		return ""
	}
	return e.PreviousEpisode.Slug
}

// BatchResolution groups batch download links by resolution
type BatchResolution struct {
	Resolution string         `json:"resolution"`
	Downloads  []DownloadLink `json:"downloads"`
}

// BatchDetail is a bundled multi-episode release
type BatchDetail struct {
	Title string            `json:"title"`
	Batch []BatchResolution `json:"batch"`
}

// FullItem is one entry of a complete-series release
type FullItem struct {
	Title      string         `json:"title"`
	Resolution string         `json:"resolution"`
	Downloads  []DownloadLink `json:"downloads"`
}

// FullDetail is a complete-series ("lengkap") release
type FullDetail struct {
	Title   string     `json:"title"`
	Lengkap []FullItem `json:"lengkap"`
}

// ScheduleAnime is one title airing on a day
type ScheduleAnime struct {
	Title string `json:"judul"`
	Slug  string `json:"slug"`
}

// ScheduleDay lists the titles airing on one day
type ScheduleDay struct {
	Day   string          `json:"hari"`
	Anime []ScheduleAnime `json:"anime"`
}

// ================== Ordered groups ==================

// Group is one labelled entry of an upstream JSON object
type Group[T any] struct {
	Label string `json:"label"`
	Items []T    `json:"items"`
}

// Groups decodes a JSON object of label -> list while keeping key order
type Groups[T any] []Group[T]

// UnmarshalJSON implements json.Unmarshaler
func (g *Groups[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*g = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("groups: expected object, got %v", tok)
	}

	out := Groups[T]{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("groups: expected string key, got %v", keyTok)
		}

		var items []T
		if err := dec.Decode(&items); err != nil {
			return fmt.Errorf("groups: decode %q: %w", key, err)
		}
		out = append(out, Group[T]{Label: key, Items: items})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*g = out
	return nil
}

// MarshalJSON writes the groups back as an ordered JSON object
func (g Groups[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, group := range g {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(group.Label)
		if err != nil {
			return nil, err
		}
		items, err := json.Marshal(group.Items)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(items)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Find returns the items for label
func (g Groups[T]) Find(label string) ([]T, bool) {
	for _, group := range g {
		if group.Label == label {
			return group.Items, true
		}
	}
	return nil, false
}

// Labels returns the labels in upstream order
func (g Groups[T]) Labels() []string {
	labels := make([]string, len(g))
	for i, group := range g {
		labels[i] = group.Label
	}
	return labels
}

// ================== Documents ==================

// Collection names in the document store
const (
	CollectionBookmarks = "bookmarks"
	CollectionHistory   = "history"
	CollectionComments  = "comments"
)

// Bookmark status tags
const (
	StatusComplete = "complete"
	StatusOngoing  = "ongoing"
)

// DocumentID builds the per-user document key
func DocumentID(userID, slug string) string {
	return userID + "_" + slug
}

// Bookmark is a user's favorite anime
type Bookmark struct {
	ID        string `json:"id,omitempty"`
	UserID    string `json:"userId"`
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Poster    string `json:"poster"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
}

// HistoryEntry is the last watched entry of one anime for one user
type HistoryEntry struct {
	ID              string `json:"id,omitempty"`
	UserID          string `json:"userId"`
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	Poster          string `json:"poster"`
	LastEpisodeName string `json:"lastEpisodeName"`
	LastEpisodeSlug string `json:"lastEpisodeSlug"`
	LastWatched     string `json:"lastWatched"`
}

// Comment is a visitor comment; ParentID points at another comment
type Comment struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Text      string  `json:"text"`
	ParentID  *string `json:"parentId"`
	CreatedAt string  `json:"createdAt"`
}

// CommentThread is a root comment with its replies
type CommentThread struct {
	Comment Comment   `json:"comment"`
	Replies []Comment `json:"replies"`
}

// timestampLayout is fixed-width so stored timestamps sort lexically
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime formats t for storage
func FormatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTime parses a stored timestamp, accepting RFC 3339 as well
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
