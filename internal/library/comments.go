package library

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"arnime/internal/model"
	"arnime/internal/store"

	"github.com/pkg/errors"
)

// AnonymousName is used for comments posted without a name
const AnonymousName = "Anonymous"

// Length limits in runes, mirrored by the comment form's maxlength
const (
	MaxCommentText = 2000
	MaxCommentName = 60
)

var (
	// ErrInvalidComment is returned for a comment with missing or oversized fields
	ErrInvalidComment = errors.New("invalid comment")
	// ErrUnknownParent is returned when parentId names no comment
	ErrUnknownParent = errors.New("parent comment not found")
)

// CommentInput is the body of POST /api/comments
type CommentInput struct {
	Name     string  `json:"name"`
	Text     string  `json:"text"`
	ParentID *string `json:"parentId"`
}

// Comments manages the comments collection
type Comments struct {
	store store.Store
	now   func() time.Time
}

// NewComments creates a new Comments
func NewComments(s store.Store) *Comments {
	return &Comments{store: s, now: time.Now}
}

// Create validates and appends a comment
func (c *Comments) Create(ctx context.Context, in CommentInput) (*model.Comment, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, errors.WithMessage(ErrInvalidComment, "text is required")
	}
	if utf8.RuneCountInString(text) > MaxCommentText {
		return nil, errors.WithMessagef(ErrInvalidComment, "text is longer than %d characters", MaxCommentText)
	}

	name := strings.TrimSpace(in.Name)
	if utf8.RuneCountInString(name) > MaxCommentName {
		return nil, errors.WithMessagef(ErrInvalidComment, "name is longer than %d characters", MaxCommentName)
	}
	if name == "" {
		name = AnonymousName
	}

	var parentID *string
	if in.ParentID != nil && strings.TrimSpace(*in.ParentID) != "" {
		id := strings.TrimSpace(*in.ParentID)
		if _, err := c.store.Get(ctx, model.CollectionComments, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrUnknownParent
			}
			return nil, errors.Wrap(err, "failed to load parent comment")
		}
		parentID = &id
	}

	comment := model.Comment{
		Name:      name,
		Text:      text,
		ParentID:  parentID,
		CreatedAt: model.FormatTime(c.now()),
	}
	fields, err := store.Encode(comment)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode comment")
	}

	id, err := c.store.Insert(ctx, model.CollectionComments, fields)
	if err != nil {
		return nil, errors.Wrap(err, "failed to save comment")
	}
	comment.ID = id
	return &comment, nil
}

// List returns every comment, oldest first
func (c *Comments) List(ctx context.Context) ([]model.Comment, error) {
	docs, err := c.store.Query(ctx, model.CollectionComments, store.Query{OrderBy: "createdAt"})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list comments")
	}

	comments := make([]model.Comment, 0, len(docs))
	for _, doc := range docs {
		var cm model.Comment
		if err := store.Decode(doc, &cm); err != nil {
			return nil, errors.Wrap(err, "failed to decode comment")
		}
		comments = append(comments, cm)
	}
	return comments, nil
}

// Threads nests comments one level deep. Comments must be in creation order.
// A reply to a reply goes under the root of its chain; a comment whose
// parent is missing is shown as a root.
func Threads(comments []model.Comment) []model.CommentThread {
	byID := make(map[string]model.Comment, len(comments))
	for _, cm := range comments {
		byID[cm.ID] = cm
	}

	rootOf := func(cm model.Comment) string {
		seen := map[string]bool{cm.ID: true}
		for cm.ParentID != nil {
			parent, ok := byID[*cm.ParentID]
			if !ok || seen[parent.ID] {
				break
			}
			seen[parent.ID] = true
			cm = parent
		}
		return cm.ID
	}

	threads := []model.CommentThread{}
	index := make(map[string]int)
	var replies []model.Comment

	for _, cm := range comments {
		root := rootOf(cm)
		if root == cm.ID {
			index[cm.ID] = len(threads)
			threads = append(threads, model.CommentThread{Comment: cm, Replies: []model.Comment{}})
			continue
		}
		replies = append(replies, cm)
	}

	for _, cm := range replies {
		if i, ok := index[rootOf(cm)]; ok {
			threads[i].Replies = append(threads[i].Replies, cm)
		}
	}
	return threads
}
