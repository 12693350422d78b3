package handler

import (
	"context"
	"net/http"

	"arnime/internal/library"
	"arnime/internal/model"
	"arnime/internal/page"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// CommentHandler handles the public comment board
type CommentHandler struct {
	view     View
	comments *library.Comments
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(view View, comments *library.Comments) *CommentHandler {
	return &CommentHandler{view: view, comments: comments}
}

// Page renders the board as threads
// GET /comments
func (h *CommentHandler) Page(c *gin.Context) {
	ctrl := page.NewController(func(ctx context.Context, _ string) ([]model.CommentThread, error) {
		comments, err := h.comments.List(ctx)
		if err != nil {
			return nil, err
		}
		return library.Threads(comments), nil
	})
	st := ctrl.Load(c.Request.Context(), "comments")

	renderState(h.view, c, "comments.html", st, gin.H{
		"Title":   "Comments",
		"Threads": st.Data,
	})
}

// List returns every comment, oldest first
// GET /api/comments
func (h *CommentHandler) List(c *gin.Context) {
	comments, err := h.comments.List(c.Request.Context())
	if err != nil {
		jsonError(c, err, "failed to load comments")
		return
	}
	c.JSON(http.StatusOK, model.APIResponse{
		Code: http.StatusOK,
		Data: comments,
	})
}

// Create posts a comment or a reply
// POST /api/comments
func (h *CommentHandler) Create(c *gin.Context) {
	var in library.CommentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:  http.StatusBadRequest,
			Error: "invalid request body",
		})
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, library.ErrInvalidComment) || errors.Is(err, library.ErrUnknownParent) {
			c.JSON(http.StatusBadRequest, model.APIResponse{
				Code:  http.StatusBadRequest,
				Error: err.Error(),
			})
			return
		}
		jsonError(c, err, "failed to save comment")
		return
	}

	log.Info().Str("id", comment.ID).Bool("reply", comment.ParentID != nil).Msg("💬 Comment posted")

	c.JSON(http.StatusCreated, model.APIResponse{
		Code: http.StatusCreated,
		Data: comment,
	})
}
