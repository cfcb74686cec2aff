package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/transconnect-go/internal/services/post/service"
	authmw "github.com/transconnect-go/pkg/middleware/auth"
	"github.com/transconnect-go/pkg/response"
	"github.com/transconnect-go/pkg/validation"
)

const (
	invalidPostID    = "Invalid post ID."
	invalidCommentID = "Invalid comment ID."
)

type PostHandlers struct {
	service *service.PostService
}

func NewPostHandlers(service *service.PostService) *PostHandlers {
	return &PostHandlers{service: service}
}

// PostOwner loads the author of the post named in the route.
func (h *PostHandlers) PostOwner() authmw.OwnerLoader {
	return func(ctx context.Context, id uint) (authmw.Owner, error) {
		userID, username, err := h.service.PostOwner(ctx, id)
		return authmw.Owner{UserID: userID, Username: username}, err
	}
}

// CommentOwner loads the author of the comment named in the route.
func (h *PostHandlers) CommentOwner() authmw.OwnerLoader {
	return func(ctx context.Context, id uint) (authmw.Owner, error) {
		userID, username, err := h.service.CommentOwner(ctx, id)
		return authmw.Owner{UserID: userID, Username: username}, err
	}
}

// PostOwnerEvidence and CommentOwnerEvidence feed gate decisions from the
// stored record rather than from the request body.
func (h *PostHandlers) PostOwnerEvidence() authmw.ContextFunc {
	return authmw.FromOwner("post_id", invalidPostID, h.PostOwner())
}

func (h *PostHandlers) CommentOwnerEvidence() authmw.ContextFunc {
	return authmw.FromOwner("comment_id", invalidCommentID, h.CommentOwner())
}

func (h *PostHandlers) UserPostEvidence() authmw.ContextFunc {
	return authmw.FromParamAndOwner("username", "post_id", invalidPostID, h.PostOwner())
}

// ListPosts handles GET /posts
func (h *PostHandlers) ListPosts(c *gin.Context) {
	posts, err := h.service.ListPosts(c.Request.Context(), c.Query("tag"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "posts", posts)
}

// ListTags handles GET /posts/tags
func (h *PostHandlers) ListTags(c *gin.Context) {
	tags, err := h.service.ListTags(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "tags", tags)
}

// CreatePost handles POST /posts
func (h *PostHandlers) CreatePost(c *gin.Context) {
	var req service.PostRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	p, err := h.service.CreatePost(c.Request.Context(), authmw.PrincipalFrom(c), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, "post", p)
}

// GetPost handles GET /posts/:post_id
func (h *PostHandlers) GetPost(c *gin.Context) {
	id, err := validation.PathID(c, "post_id", invalidPostID)
	if err != nil {
		response.Fail(c, err)
		return
	}

	p, err := h.service.GetPost(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "post", p)
}

// UpdatePost handles PATCH /posts/:post_id
func (h *PostHandlers) UpdatePost(c *gin.Context) {
	id, err := validation.PathID(c, "post_id", invalidPostID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req service.UpdatePostRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	p, err := h.service.UpdatePost(c.Request.Context(), id, req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "post", p)
}

// DeletePost handles DELETE /posts/:post_id
func (h *PostHandlers) DeletePost(c *gin.Context) {
	id, err := validation.PathID(c, "post_id", invalidPostID)
	if err != nil {
		response.Fail(c, err)
		return
	}

	if err := h.service.DeletePost(c.Request.Context(), id); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "deleted", c.Param("post_id"))
}

// ListUserPosts handles GET /users/:username/posts
func (h *PostHandlers) ListUserPosts(c *gin.Context) {
	posts, err := h.service.ListUserPosts(c.Request.Context(), c.Param("username"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "posts", posts)
}

// UpdateUserPost handles PATCH /users/:username/posts/:post_id
func (h *PostHandlers) UpdateUserPost(c *gin.Context) {
	id, err := validation.PathID(c, "post_id", invalidPostID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req service.UpdatePostRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	p, err := h.service.UpdateUserPost(c.Request.Context(), c.Param("username"), id, req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "post", p)
}

// DeleteUserPost handles DELETE /users/:username/posts/:post_id
func (h *PostHandlers) DeleteUserPost(c *gin.Context) {
	id, err := validation.PathID(c, "post_id", invalidPostID)
	if err != nil {
		response.Fail(c, err)
		return
	}

	if err := h.service.DeleteUserPost(c.Request.Context(), c.Param("username"), id); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "deleted", c.Param("post_id"))
}

// ListComments handles GET /posts/:post_id/comments and GET /comments/:post_id
func (h *PostHandlers) ListComments(c *gin.Context) {
	postID, err := validation.PathID(c, "post_id", invalidPostID)
	if err != nil {
		response.Fail(c, err)
		return
	}

	comments, err := h.service.ListComments(c.Request.Context(), postID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "comments", comments)
}

// AddComment handles POST /posts/:post_id/comments and POST /comments/:post_id
func (h *PostHandlers) AddComment(c *gin.Context) {
	postID, err := validation.PathID(c, "post_id", invalidPostID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req service.CommentRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	comment, err := h.service.AddComment(c.Request.Context(), authmw.PrincipalFrom(c), postID, req.Content)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, "comment", comment)
}

// GetComment handles GET /comments/:post_id/:comment_id
func (h *PostHandlers) GetComment(c *gin.Context) {
	postID, commentID, err := commentPath(c)
	if err != nil {
		response.Fail(c, err)
		return
	}

	comment, err := h.service.GetPostComment(c.Request.Context(), postID, commentID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "comment", comment)
}

// UpdateComment handles PATCH /posts/:post_id/comments/:comment_id
func (h *PostHandlers) UpdateComment(c *gin.Context) {
	postID, commentID, err := commentPath(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req service.UpdateCommentRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	comment, err := h.service.UpdateComment(c.Request.Context(), postID, commentID, req.Content, service.MsgCommentNotFound)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "comment", comment)
}

// EditComment handles PATCH /comments/:post_id/:comment_id
func (h *PostHandlers) EditComment(c *gin.Context) {
	postID, commentID, err := commentPath(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req service.EditCommentRequest
	if err := validation.BindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	comment, err := h.service.UpdateComment(c.Request.Context(), postID, commentID, &req.Comment, service.MsgCommentNotInPost)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "updatedComment", comment)
}

// DeleteComment handles DELETE /posts/:post_id/comments/:comment_id
func (h *PostHandlers) DeleteComment(c *gin.Context) {
	h.deleteComment(c, service.MsgCommentNotFound)
}

// RemoveComment handles DELETE /comments/:post_id/:comment_id
func (h *PostHandlers) RemoveComment(c *gin.Context) {
	h.deleteComment(c, service.MsgCommentNotInPost)
}

func (h *PostHandlers) deleteComment(c *gin.Context, missingMessage string) {
	postID, commentID, err := commentPath(c)
	if err != nil {
		response.Fail(c, err)
		return
	}

	if err := h.service.DeleteComment(c.Request.Context(), postID, commentID, missingMessage); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "deleted", c.Param("comment_id"))
}

func commentPath(c *gin.Context) (uint, uint, error) {
	postID, err := validation.PathID(c, "post_id", invalidPostID)
	if err != nil {
		return 0, 0, err
	}
	commentID, err := validation.PathID(c, "comment_id", invalidCommentID)
	if err != nil {
		return 0, 0, err
	}
	return postID, commentID, nil
}
