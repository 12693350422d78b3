package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"arnime/internal/model"
	"arnime/pkg/httpclient"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public anime API
const DefaultBaseURL = "https://api.ammaricano.my.id/api/otakudesu"

// Anime list types
const (
	TypeOngoing  = "ongoing"
	TypeComplete = "complete"
)

// NotFoundError is returned when the upstream answers with a well-formed
// payload that carries no usable result
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return e.What + " not found"
}

// ErrPlayerUnavailable is returned when the iframe HTML has no player source
var ErrPlayerUnavailable = errors.New("player could not be loaded")

// FallbackGenres is used when the genre list cannot be fetched
var FallbackGenres = []model.Genre{
	{Name: "Action", Slug: "action"},
	{Name: "Adventure", Slug: "adventure"},
	{Name: "Comedy", Slug: "comedy"},
	{Name: "Drama", Slug: "drama"},
}

// AnimeService handles anime API interactions
type AnimeService struct {
	client  *httpclient.Client
	baseURL string
}

// NewAnimeService creates a new AnimeService
func NewAnimeService(client *httpclient.Client, baseURL string) *AnimeService {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &AnimeService{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type envelope struct {
	Result json.RawMessage `json:"result"`
}

func (s *AnimeService) endpoint(path string, query url.Values) string {
	u := s.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// fetchResult returns the raw "result" member, nil when the body is not an
// object or the member is absent or null
func (s *AnimeService) fetchResult(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	target := s.endpoint(path, query)

	body, err := s.client.Fetch(ctx, target)
	if err != nil {
		log.Warn().Err(err).Str("url", target).Str("kind", ErrorKind(err)).Msg("Upstream request failed")
		return nil, err
	}
	if len(body) == 0 || body[0] != '{' {
		log.Warn().Str("url", target).Msg("Upstream body is not an object")
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &httpclient.FormatError{Err: err}
	}

	raw := bytes.TrimSpace(env.Result)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	return raw, nil
}

func (s *AnimeService) fetchList(ctx context.Context, what, path string, query url.Values) ([]model.AnimeSummary, error) {
	raw, err := s.fetchResult(ctx, path, query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", what)
	}
	if len(raw) == 0 || raw[0] != '[' {
		return nil, &NotFoundError{What: what}
	}

	items := []model.AnimeSummary{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", what)
	}

	log.Debug().Str("what", what).Int("count", len(items)).Msg("Fetched anime list")
	return items, nil
}

func (s *AnimeService) fetchObject(ctx context.Context, what, path string, dest any) error {
	raw, err := s.fetchResult(ctx, path, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch %s", what)
	}
	if len(raw) == 0 || raw[0] != '{' {
		return &NotFoundError{What: what}
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return errors.Wrapf(err, "failed to parse %s", what)
	}
	return nil
}

// ListByType returns one page of ongoing or complete anime
func (s *AnimeService) ListByType(ctx context.Context, animeType string, page int) ([]model.AnimeSummary, error) {
	if animeType != TypeComplete {
		animeType = TypeOngoing
	}
	q := url.Values{}
	q.Set("type", animeType)
	q.Set("page", strconv.Itoa(page))
	return s.fetchList(ctx, "anime list", "", q)
}

// ListByGenre returns one page of anime in a genre
func (s *AnimeService) ListByGenre(ctx context.Context, genreSlug string, page int) ([]model.AnimeSummary, error) {
	q := url.Values{}
	q.Set("genre", genreSlug)
	q.Set("page", strconv.Itoa(page))
	return s.fetchList(ctx, "genre list", "/animebygenre", q)
}

// Search looks anime up by title
func (s *AnimeService) Search(ctx context.Context, query string) ([]model.AnimeSummary, error) {
	q := url.Values{}
	q.Set("query", query)
	return s.fetchList(ctx, "search results", "/search", q)
}

// Genres returns the upstream genre list
func (s *AnimeService) Genres(ctx context.Context) ([]model.Genre, error) {
	raw, err := s.fetchResult(ctx, "/genre", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch genres")
	}
	if len(raw) == 0 || raw[0] != '[' {
		return nil, &NotFoundError{What: "genres"}
	}

	var genres []model.Genre
	if err := json.Unmarshal(raw, &genres); err != nil {
		return nil, errors.Wrap(err, "failed to parse genres")
	}
	return genres, nil
}

// GenresOrFallback never fails; it falls back to a short built-in list
func (s *AnimeService) GenresOrFallback(ctx context.Context) []model.Genre {
	genres, err := s.Genres(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Using fallback genres")
		return FallbackGenres
	}
	return genres
}

// GenreSlug maps a genre name to its slug, defaulting to the lower-cased name
func GenreSlug(genres []model.Genre, name string) string {
	for _, g := range genres {
		if g.Name == name {
			return g.Slug
		}
	}
	return strings.ToLower(name)
}

// Detail returns the detail of one anime
func (s *AnimeService) Detail(ctx context.Context, slug string) (*model.AnimeDetail, error) {
	var detail model.AnimeDetail
	if err := s.fetchObject(ctx, "anime", "/detail/"+url.PathEscape(slug), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Episode returns the playback payload of one episode
func (s *AnimeService) Episode(ctx context.Context, slug string) (*model.EpisodeDetail, error) {
	var episode model.EpisodeDetail
	if err := s.fetchObject(ctx, "episode", "/episode/"+url.PathEscape(slug), &episode); err != nil {
		return nil, err
	}
	return &episode, nil
}

// Batch returns a batch download release
func (s *AnimeService) Batch(ctx context.Context, slug string) (*model.BatchDetail, error) {
	var batch model.BatchDetail
	if err := s.fetchObject(ctx, "batch", "/batch/"+url.PathEscape(slug), &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// Full returns a complete-series release
func (s *AnimeService) Full(ctx context.Context, slug string) (*model.FullDetail, error) {
	var full struct {
		Title   string            `json:"title"`
		Lengkap *[]model.FullItem `json:"lengkap"`
	}
	if err := s.fetchObject(ctx, "full release", "/lengkap/"+url.PathEscape(slug), &full); err != nil {
		return nil, err
	}
	if full.Lengkap == nil {
		return nil, &NotFoundError{What: "full release"}
	}
	return &model.FullDetail{Title: full.Title, Lengkap: *full.Lengkap}, nil
}

// Schedule returns the weekly release schedule
func (s *AnimeService) Schedule(ctx context.Context) ([]model.ScheduleDay, error) {
	raw, err := s.fetchResult(ctx, "/schedule", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch schedule")
	}
	if len(raw) == 0 || raw[0] != '[' {
		return nil, &NotFoundError{What: "schedule"}
	}

	days := []model.ScheduleDay{}
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, errors.Wrap(err, "failed to parse schedule")
	}
	return days, nil
}

// Nonce issues a one-time token for the iframe call
func (s *AnimeService) Nonce(ctx context.Context) (string, error) {
	raw, err := s.fetchResult(ctx, "/nonce", nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch nonce")
	}

	var nonce string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &nonce); err != nil {
			return "", errors.Wrap(err, "failed to parse nonce")
		}
	}
	if nonce == "" {
		return "", errors.New("failed to obtain security token")
	}
	return nonce, nil
}

// Iframe exchanges a mirror content token and a nonce for the player HTML
func (s *AnimeService) Iframe(ctx context.Context, content, nonce string) (string, error) {
	q := url.Values{}
	q.Set("content", content)
	q.Set("nonce", nonce)

	raw, err := s.fetchResult(ctx, "/getiframe", q)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch player")
	}

	var html string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &html); err != nil {
			return "", errors.Wrap(err, "failed to parse player")
		}
	}
	return html, nil
}

// ResolveMirror turns a mirror content token into a playable URL.
// The nonce must be issued before the iframe call.
func (s *AnimeService) ResolveMirror(ctx context.Context, content string) (string, error) {
	if content == "" {
		return "", errors.New("empty mirror content")
	}

	nonce, err := s.Nonce(ctx)
	if err != nil {
		return "", err
	}

	html, err := s.Iframe(ctx, content, nonce)
	if err != nil {
		return "", err
	}

	src, err := IframeSrc(html)
	if err != nil {
		return "", err
	}

	log.Debug().Str("src", src).Msg("Resolved mirror")
	return src, nil
}

// IframeSrc extracts the src of the first iframe in html
func IframeSrc(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", errors.Wrap(err, "failed to parse player HTML")
	}

	src, ok := doc.Find("iframe").First().Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return "", ErrPlayerUnavailable
	}
	return strings.TrimSpace(src), nil
}

// ErrorKind classifies an upstream error for logs and metrics; other
// errors map to ""
func ErrorKind(err error) string {
	var httpErr *httpclient.HTTPError
	var formatErr *httpclient.FormatError
	var notFound *NotFoundError
	var urlErr *url.Error

	switch {
	case err == nil:
		return ""
	case errors.As(err, &httpErr):
		return fmt.Sprintf("http_%d", httpErr.Status)
	case errors.As(err, &formatErr):
		return "format"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.Is(err, ErrPlayerUnavailable):
		return "player"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &urlErr):
		return "network"
	}
	// not an upstream failure
	return ""
}
