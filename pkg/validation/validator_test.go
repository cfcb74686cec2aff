package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transconnect-go/pkg/apperr"
)

type commentRequest struct {
	Content string `json:"content" validate:"required,min=1" msg:"Comment cannot be empty"`
}

type postRequest struct {
	Title   string   `json:"title" validate:"required" msg:"Post title cannot be empty"`
	Content string   `json:"content" validate:"required" msg:"Post content cannot be empty"`
	Tags    []string `json:"tags" validate:"omitempty,dive,min=1" msg:"Tags cannot be empty"`
}

type userRequest struct {
	Username string  `json:"username" validate:"required,min=3"`
	Password string  `json:"password" validate:"required,min=6"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Role     string  `json:"role" validate:"oneof=USER ADMIN" default:"USER"`
}

type userUpdate struct {
	Bio      *string `json:"bio" validate:"omitempty,max=10"`
	Pronouns *string `json:"pronouns" validate:"omitempty,min=1"`
}

type locationQuery struct {
	Lat string `form:"lat" json:"lat" validate:"omitempty,latitude"`
	Lng string `form:"lng" json:"lng" validate:"omitempty,longitude"`
}

func TestBindCommentEmptyContent(t *testing.T) {
	var req commentRequest
	violations := Bind([]byte(`{"content":""}`), &req)
	assert.Equal(t, []string{"Comment cannot be empty"}, violations)
}

func TestBindCollectsEveryViolation(t *testing.T) {
	var req postRequest
	violations := Bind([]byte(`{"title":"","content":""}`), &req)
	assert.Equal(t, []string{"Post title cannot be empty", "Post content cannot be empty"}, violations)
}

func TestBindListOverrideReportedOnce(t *testing.T) {
	var req postRequest
	violations := Bind([]byte(`{"title":"t","content":"c","tags":["", ""]}`), &req)
	assert.Equal(t, []string{"Tags cannot be empty"}, violations)
}

func TestBindAcceptsAndIgnoresUnknownFields(t *testing.T) {
	var req postRequest
	violations := Bind([]byte(`{"title":"Hi","content":"There","extra":true}`), &req)
	assert.Empty(t, violations)
	assert.Equal(t, "Hi", req.Title)
}

func TestBindGeneratedMessages(t *testing.T) {
	var req userRequest
	violations := Bind([]byte(`{"username":"ab","password":"123","email":"nope","role":"ROOT"}`), &req)
	assert.Equal(t, []string{
		"username must contain at least 3 characters",
		"password must contain at least 6 characters",
		"email must be a valid email address",
		"role must be one of: USER ADMIN",
	}, violations)
}

func TestBindAppliesDefaults(t *testing.T) {
	var req userRequest
	violations := Bind([]byte(`{"username":"sam","password":"secret1"}`), &req)
	assert.Empty(t, violations)
	assert.Equal(t, "USER", req.Role)
	assert.Nil(t, req.Email)
}

func TestBindMissingBody(t *testing.T) {
	var req commentRequest
	violations := Bind(nil, &req)
	assert.Equal(t, []string{"Comment cannot be empty"}, violations)
}

func TestBindTypeMismatch(t *testing.T) {
	var req postRequest
	violations := Bind([]byte(`{"title":5,"content":""}`), &req)
	assert.Equal(t, []string{"title must be a string", "Post content cannot be empty"}, violations)
}

func TestBindReportsEveryMistypedField(t *testing.T) {
	var req postRequest
	violations := Bind([]byte(`{"content":2,"title":1}`), &req)
	assert.Equal(t, []string{"title must be a string", "content must be a string"}, violations)
}

func TestBindMistypedListElement(t *testing.T) {
	var req postRequest
	violations := Bind([]byte(`{"title":"t","content":"c","tags":[1]}`), &req)
	assert.Equal(t, []string{"tags must be an array of strings"}, violations)

	violations = Bind([]byte(`{"title":"t","content":"c","tags":"news"}`), &req)
	assert.Equal(t, []string{"tags must be an array of strings"}, violations)
}

func TestBindMistypedNumbersAndBooleans(t *testing.T) {
	type settings struct {
		Limit   int     `json:"limit"`
		Ratio   float64 `json:"ratio"`
		Enabled bool    `json:"enabled"`
		Note    *string `json:"note"`
	}
	var req settings
	violations := Bind([]byte(`{"limit":1.5,"ratio":"high","enabled":"yes","note":null}`), &req)
	assert.Equal(t, []string{
		"limit must be a number",
		"ratio must be a number",
		"enabled must be a boolean",
	}, violations)
}

func TestBindMalformedJSON(t *testing.T) {
	var req postRequest
	assert.Equal(t, []string{"Request body must be valid JSON"}, Bind([]byte(`{"title":`), &req))
	assert.Equal(t, []string{"Request body must be a JSON object"}, Bind([]byte(`[1,2]`), &req))
}

func TestPartialUpdate(t *testing.T) {
	var req userUpdate
	assert.Empty(t, Bind([]byte(`{}`), &req))

	empty := ""
	req = userUpdate{Pronouns: &empty}
	assert.Equal(t, []string{"pronouns must contain at least 1 characters"}, Validate(&req))

	long := "far too long for a bio"
	req = userUpdate{Bio: &long}
	assert.Equal(t, []string{"bio must contain at most 10 characters"}, Validate(&req))
}

func TestBindJSONUsesCachedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"hello","username":"sam"}`))

	var probe struct {
		Username string `json:"username"`
	}
	require.NoError(t, c.ShouldBindBodyWith(&probe, binding.JSON))
	assert.Equal(t, "sam", probe.Username)

	var req commentRequest
	require.NoError(t, BindJSON(c, &req))
	assert.Equal(t, "hello", req.Content)
}

func TestBindJSONReportsBadRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":""}`))

	var req commentRequest
	err := BindJSON(c, &req)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
	assert.Equal(t, []string{"Comment cannot be empty"}, apperr.From(err).Violations)
}

func TestBindQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?lat=95&lng=-73.9", nil)

	var q locationQuery
	err := BindQuery(c, &q)
	require.Error(t, err)
	assert.Equal(t, []string{"lat must be a valid latitude (-90 to 90)"}, apperr.From(err).Violations)
}
