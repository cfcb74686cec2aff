package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transconnect-go/internal/domain/auth"
	"github.com/transconnect-go/internal/domain/post"
	"github.com/transconnect-go/internal/domain/user"
	"github.com/transconnect-go/pkg/database"
	"github.com/transconnect-go/pkg/logger"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
)

func setupRepository(t *testing.T) (*PostRepository, *database.DB) {
	t.Helper()
	db, err := database.Open(sqlite.Open(":memory:"), database.Config{MaxOpenConns: 1}, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(&user.User{}, &post.Tag{}, &post.Post{}, &post.Comment{}))
	t.Cleanup(func() { _ = db.Close() })
	return NewPostRepository(db), db
}

func createUser(t *testing.T, db *database.DB, username string) *user.User {
	t.Helper()
	u, err := user.NewUser(username, "password", nil, nil, auth.RoleUser, bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Create(u).Error)
	return u
}

func createPost(t *testing.T, repo *PostRepository, author *user.User, title string, tags ...string) *post.Post {
	t.Helper()
	p := &post.Post{Title: title, Content: title + " content", UserID: &author.ID}
	require.NoError(t, repo.Create(context.Background(), p, tags))
	return p
}

func TestCreateReusesTags(t *testing.T) {
	repo, db := setupRepository(t)
	sam := createUser(t, db, "sam")

	first := createPost(t, repo, sam, "first", "news", "help", "news")
	second := createPost(t, repo, sam, "second", "help")

	assert.Len(t, first.Tags, 2)
	require.Len(t, second.Tags, 1)
	assert.Equal(t, first.Tags[1].ID, second.Tags[0].ID)

	tags, err := repo.ListTags(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "help", tags[0].Name)
	assert.Len(t, tags[0].Posts, 2)
	assert.Equal(t, "news", tags[1].Name)
	assert.Len(t, tags[1].Posts, 1)
}

func TestEnsureTagsKeepsExistingRows(t *testing.T) {
	_, db := setupRepository(t)
	existing := &post.Tag{Name: "news"}
	require.NoError(t, db.Create(existing).Error)

	tags, err := ensureTags(db.DB, []string{"news", "news", "events"})
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, existing.ID, tags[0].ID)
	assert.Equal(t, "news", tags[0].Name)
	assert.Equal(t, "events", tags[1].Name)
	assert.NotZero(t, tags[1].ID)

	again, err := ensureTags(db.DB, []string{"events"})
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, tags[1].ID, again[0].ID)

	var count int64
	require.NoError(t, db.Model(&post.Tag{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestListFiltersByTag(t *testing.T) {
	repo, db := setupRepository(t)
	ctx := context.Background()
	sam := createUser(t, db, "sam")

	createPost(t, repo, sam, "tagged", "news")
	createPost(t, repo, sam, "untagged")

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	tagged, err := repo.List(ctx, "news")
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "tagged", tagged[0].Title)
	assert.Equal(t, []string{"news"}, tagged[0].TagNames())
	assert.Equal(t, "sam", tagged[0].OwnerUsername())

	none, err := repo.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListByUsername(t *testing.T) {
	repo, db := setupRepository(t)
	ctx := context.Background()
	sam := createUser(t, db, "sam")
	alex := createUser(t, db, "alex")

	createPost(t, repo, sam, "by sam")
	createPost(t, repo, alex, "by alex")

	posts, err := repo.ListByUsername(ctx, "alex")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "by alex", posts[0].Title)
	assert.Equal(t, alex.ID, posts[0].OwnerID())
}

func TestUpdateReplacesTagsOnlyWhenGiven(t *testing.T) {
	repo, db := setupRepository(t)
	ctx := context.Background()
	sam := createUser(t, db, "sam")
	p := createPost(t, repo, sam, "title", "a", "b")

	p.Title = "renamed"
	require.NoError(t, repo.Update(ctx, p, nil))
	stored, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", stored.Title)
	assert.Equal(t, []string{"a", "b"}, stored.TagNames())

	require.NoError(t, repo.Update(ctx, stored, []string{"c"}))
	stored, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, stored.TagNames())

	require.NoError(t, repo.Update(ctx, stored, []string{}))
	stored, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Tags)
}

func TestDeleteRemovesComments(t *testing.T) {
	repo, db := setupRepository(t)
	ctx := context.Background()
	sam := createUser(t, db, "sam")
	p := createPost(t, repo, sam, "title", "a")

	comment := &post.Comment{Content: "hi", PostID: p.ID, AuthorID: &sam.ID}
	require.NoError(t, repo.CreateComment(ctx, comment))

	require.NoError(t, repo.Delete(ctx, p.ID))

	_, err := repo.GetByID(ctx, p.ID)
	assert.True(t, database.IsNotFound(err))
	_, err = repo.GetComment(ctx, comment.ID)
	assert.True(t, database.IsNotFound(err))

	var links int64
	require.NoError(t, db.Table("post_tags").Count(&links).Error)
	assert.Zero(t, links)

	assert.True(t, database.IsNotFound(repo.Delete(ctx, p.ID)))
}

func TestComments(t *testing.T) {
	repo, db := setupRepository(t)
	ctx := context.Background()
	sam := createUser(t, db, "sam")
	p := createPost(t, repo, sam, "title")

	first := &post.Comment{Content: "first", PostID: p.ID, AuthorID: &sam.ID}
	second := &post.Comment{Content: "second", PostID: p.ID, AuthorID: &sam.ID}
	require.NoError(t, repo.CreateComment(ctx, first))
	require.NoError(t, repo.CreateComment(ctx, second))

	comments, err := repo.ListComments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Content)
	require.NotNil(t, comments[0].Author)
	assert.Equal(t, "sam", comments[0].Author.Username)

	first.Content = "edited"
	require.NoError(t, repo.UpdateComment(ctx, first))
	stored, err := repo.GetComment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", stored.Content)

	require.NoError(t, repo.DeleteComment(ctx, first.ID))
	assert.True(t, database.IsNotFound(repo.DeleteComment(ctx, first.ID)))
}
