package service

import (
	"context"

	"github.com/transconnect-go/internal/domain/auth"
	"github.com/transconnect-go/internal/domain/post"
	"github.com/transconnect-go/pkg/apperr"
	"github.com/transconnect-go/pkg/database"
	"github.com/transconnect-go/pkg/events"
	"github.com/transconnect-go/pkg/logger"
	"github.com/transconnect-go/pkg/middleware/requestid"
)

const (
	MsgPostNotFound     = "Post not found"
	MsgCommentNotFound  = "Comment not found"
	MsgCommentNotInPost = "Comment not found or does not belong to the specified post"
)

type PostRepository interface {
	Create(ctx context.Context, p *post.Post, tagNames []string) error
	List(ctx context.Context, tag string) ([]post.Post, error)
	ListByUsername(ctx context.Context, username string) ([]post.Post, error)
	GetByID(ctx context.Context, id uint) (*post.Post, error)
	Update(ctx context.Context, p *post.Post, tagNames []string) error
	Delete(ctx context.Context, id uint) error
	ListTags(ctx context.Context) ([]post.Tag, error)
	CreateComment(ctx context.Context, c *post.Comment) error
	ListComments(ctx context.Context, postID uint) ([]post.Comment, error)
	GetComment(ctx context.Context, id uint) (*post.Comment, error)
	UpdateComment(ctx context.Context, c *post.Comment) error
	DeleteComment(ctx context.Context, id uint) error
}

type PostRequest struct {
	Title   string   `json:"title" validate:"required" msg:"Post title cannot be empty"`
	Content string   `json:"content" validate:"required" msg:"Post content cannot be empty"`
	Tags    []string `json:"tags" validate:"omitempty,dive,required" msg:"Tags cannot be empty"`
}

// UpdatePostRequest changes only the fields that are present. A present
// tags list replaces the post's tags.
type UpdatePostRequest struct {
	Title   *string  `json:"title" validate:"omitempty,min=1" msg:"Post title cannot be empty"`
	Content *string  `json:"content" validate:"omitempty,min=1" msg:"Post content cannot be empty"`
	Tags    []string `json:"tags" validate:"omitempty,dive,required" msg:"Tags cannot be empty"`
}

type CommentRequest struct {
	Content string `json:"content" validate:"required,min=1" msg:"Comment cannot be empty"`
}

type UpdateCommentRequest struct {
	Content *string `json:"content" validate:"omitempty,min=1" msg:"Comment cannot be empty"`
}

// EditCommentRequest is the body of PATCH /comments/:post_id/:comment_id.
type EditCommentRequest struct {
	Comment string `json:"comment" validate:"required,min=1" msg:"Comment cannot be empty"`
}

type PostService struct {
	repo     PostRepository
	eventBus events.Bus
	logger   logger.Logger
}

func NewPostService(repo PostRepository, eventBus events.Bus, logger logger.Logger) *PostService {
	return &PostService{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
	}
}

func (s *PostService) ListPosts(ctx context.Context, tag string) ([]post.Post, error) {
	posts, err := s.repo.List(ctx, tag)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return posts, nil
}

func (s *PostService) ListUserPosts(ctx context.Context, username string) ([]post.Post, error) {
	posts, err := s.repo.ListByUsername(ctx, username)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return posts, nil
}

func (s *PostService) ListTags(ctx context.Context) ([]post.Tag, error) {
	tags, err := s.repo.ListTags(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return tags, nil
}

// CreatePost files a post under the author's account.
func (s *PostService) CreatePost(ctx context.Context, author *auth.Principal, req PostRequest) (*post.Post, error) {
	p := &post.Post{
		Title:   req.Title,
		Content: req.Content,
		UserID:  ownerID(author),
	}
	if err := s.repo.Create(ctx, p, req.Tags); err != nil {
		return nil, apperr.Internal(err)
	}

	s.publish(ctx, events.NewEventBuilder(events.PostCreated).
		WithAggregate("post", p.ID).
		WithActor(actorName(author)).
		WithPayload("title", p.Title).
		WithPayload("tags", p.TagNames()).
		WithRequestID(requestid.FromContext(ctx)).
		Build())
	return s.GetPost(ctx, p.ID)
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*post.Post, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, MsgPostNotFound)
	}
	return p, nil
}

// PostOwner returns the id and username of a post's author. Both are zero
// when the author no longer exists.
func (s *PostService) PostOwner(ctx context.Context, id uint) (uint, string, error) {
	p, err := s.GetPost(ctx, id)
	if err != nil {
		return 0, "", err
	}
	return p.OwnerID(), p.OwnerUsername(), nil
}

func (s *PostService) UpdatePost(ctx context.Context, id uint, req UpdatePostRequest) (*post.Post, error) {
	p, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, p, req)
}

// UpdateUserPost updates a post addressed through its author's username.
// A post written by someone else is reported as missing.
func (s *PostService) UpdateUserPost(ctx context.Context, username string, id uint, req UpdatePostRequest) (*post.Post, error) {
	p, err := s.userPost(ctx, username, id)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, p, req)
}

func (s *PostService) update(ctx context.Context, p *post.Post, req UpdatePostRequest) (*post.Post, error) {
	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Content != nil {
		p.Content = *req.Content
	}
	if err := s.repo.Update(ctx, p, req.Tags); err != nil {
		return nil, apperr.Internal(err)
	}
	return s.GetPost(ctx, p.ID)
}

func (s *PostService) DeletePost(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundOr(err, MsgPostNotFound)
	}
	return nil
}

func (s *PostService) DeleteUserPost(ctx context.Context, username string, id uint) error {
	if _, err := s.userPost(ctx, username, id); err != nil {
		return err
	}
	return s.DeletePost(ctx, id)
}

func (s *PostService) userPost(ctx context.Context, username string, id uint) (*post.Post, error) {
	p, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerUsername() != username {
		return nil, apperr.NotFound(MsgPostNotFound)
	}
	return p, nil
}

func (s *PostService) ListComments(ctx context.Context, postID uint) ([]post.Comment, error) {
	comments, err := s.repo.ListComments(ctx, postID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return comments, nil
}

// AddComment attaches a comment by author to an existing post.
func (s *PostService) AddComment(ctx context.Context, author *auth.Principal, postID uint, content string) (*post.Comment, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	c := &post.Comment{
		Content:  content,
		PostID:   postID,
		AuthorID: ownerID(author),
	}
	if err := s.repo.CreateComment(ctx, c); err != nil {
		return nil, apperr.Internal(err)
	}

	s.publish(ctx, events.NewEventBuilder(events.CommentCreated).
		WithAggregate("comment", c.ID).
		WithActor(actorName(author)).
		WithPayload("postId", postID).
		WithRequestID(requestid.FromContext(ctx)).
		Build())
	return c, nil
}

func (s *PostService) GetComment(ctx context.Context, id uint) (*post.Comment, error) {
	c, err := s.repo.GetComment(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, MsgCommentNotFound)
	}
	return c, nil
}

// GetPostComment checks the post first, then the comment, then that the
// comment belongs to the post.
func (s *PostService) GetPostComment(ctx context.Context, postID, commentID uint) (*post.Comment, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	c, err := s.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.PostID != postID {
		return nil, apperr.BadRequest("Comment does not belong to the specified post")
	}
	return c, nil
}

// CommentOwner returns the id and username of a comment's author.
func (s *PostService) CommentOwner(ctx context.Context, id uint) (uint, string, error) {
	c, err := s.GetComment(ctx, id)
	if err != nil {
		return 0, "", err
	}
	if c.AuthorID == nil || c.Author == nil {
		return 0, "", nil
	}
	return *c.AuthorID, c.Author.Username, nil
}

// UpdateComment edits a comment of the given post. missingMessage reports a
// comment that does not exist or lives under another post.
func (s *PostService) UpdateComment(ctx context.Context, postID, commentID uint, content *string, missingMessage string) (*post.Comment, error) {
	c, err := s.commentInPost(ctx, postID, commentID, missingMessage)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return c, nil
	}

	c.Content = *content
	if err := s.repo.UpdateComment(ctx, c); err != nil {
		return nil, apperr.Internal(err)
	}
	return c, nil
}

func (s *PostService) DeleteComment(ctx context.Context, postID, commentID uint, missingMessage string) error {
	if _, err := s.commentInPost(ctx, postID, commentID, missingMessage); err != nil {
		return err
	}
	if err := s.repo.DeleteComment(ctx, commentID); err != nil {
		return notFoundOr(err, missingMessage)
	}
	return nil
}

func (s *PostService) commentInPost(ctx context.Context, postID, commentID uint, missingMessage string) (*post.Comment, error) {
	c, err := s.repo.GetComment(ctx, commentID)
	if err != nil {
		return nil, notFoundOr(err, missingMessage)
	}
	if c.PostID != postID {
		return nil, apperr.NotFound(missingMessage)
	}
	return c, nil
}

func (s *PostService) publish(ctx context.Context, event events.Event) {
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "error", err, "type", event.Type)
	}
}

func notFoundOr(err error, message string) error {
	if database.IsNotFound(err) {
		return apperr.NotFound(message)
	}
	return apperr.Internal(err)
}

func ownerID(p *auth.Principal) *uint {
	if p == nil || p.UserID == 0 {
		return nil
	}
	id := p.UserID
	return &id
}

func actorName(p *auth.Principal) string {
	if p == nil {
		return ""
	}
	return p.Username
}
