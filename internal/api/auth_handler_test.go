package api

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"jobgenie/internal/api/middleware"
	"jobgenie/internal/auth"
	"jobgenie/internal/config"
	"jobgenie/internal/database"
	"jobgenie/internal/database/dbtest"
)

type authFixture struct {
	router    *gin.Engine
	db        *gorm.DB
	redis     *fakeRedis
	publisher *recordingPublisher
	service   *auth.AuthService
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	db := dbtest.Open(t)
	svc := newAuthService(t)
	rdb := newFakeRedis()
	pub := &recordingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewAuthHandler(db, svc, rdb, auth.NewSessionNotifier(pub), logger, config.AuthConfig{
		LoginRateLimitPerHour: 100,
		LoginLockThreshold:    3,
		LoginLockTTL:          15 * time.Minute,
	})

	r := gin.New()
	g := r.Group("/v1/auth")
	g.POST("/signup", h.SignUp)
	g.POST("/signin", h.SignIn)
	g.POST("/refresh", h.Refresh)
	g.POST("/signout", middleware.AuthMiddleware(svc), h.SignOut)
	g.GET("/session", middleware.AuthMiddleware(svc), h.Session)
	return authFixture{router: r, db: db, redis: rdb, publisher: pub, service: svc}
}

func TestSignUp_CreatesProfileAndFreeSubscription(t *testing.T) {
	f := newAuthFixture(t)

	w := doJSON(t, f.router, http.MethodPost, "/v1/auth/signup", map[string]string{
		"email": " Ada@Example.com ", "password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decode[tokenResponse](t, w)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.False(t, resp.Onboarded)

	var user database.User
	require.NoError(t, f.db.Where("email = ?", "ada@example.com").Take(&user).Error)
	assert.Equal(t, resp.UserID, user.ID)

	var profile database.Profile
	require.NoError(t, f.db.Where("user_id = ?", user.ID).Take(&profile).Error)
	var sub database.Subscription
	require.NoError(t, f.db.Where("user_id = ?", user.ID).Take(&sub).Error)
	assert.Equal(t, "free", sub.Plan)

	assert.Contains(t, w.Header().Get("Set-Cookie"), refreshTokenCookieName+"=")
	assert.Equal(t, []string{auth.SessionSignedIn}, f.publisher.names())
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	body := map[string]string{"email": "ada@example.com", "password": "correct-horse"}

	require.Equal(t, http.StatusCreated, doJSON(t, f.router, http.MethodPost, "/v1/auth/signup", body).Code)
	w := doJSON(t, f.router, http.MethodPost, "/v1/auth/signup", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSignUp_ValidatesInput(t *testing.T) {
	f := newAuthFixture(t)

	w := doJSON(t, f.router, http.MethodPost, "/v1/auth/signup", map[string]string{
		"email": "not-an-email", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignUp_RejectsMalformedEmails(t *testing.T) {
	f := newAuthFixture(t)

	for _, email := range []string{"   ", " not-an-email ", "a@" + strings.Repeat("b", 260) + ".com"} {
		w := doJSON(t, f.router, http.MethodPost, "/v1/auth/signup", map[string]string{
			"email": email, "password": "correct-horse",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code, email)
	}
}

func TestSignIn_NormalizesPaddedEmail(t *testing.T) {
	f := newAuthFixture(t)
	require.Equal(t, http.StatusCreated, doJSON(t, f.router, http.MethodPost, "/v1/auth/signup", map[string]string{
		"email": "ada@example.com", "password": "correct-horse",
	}).Code)

	w := doJSON(t, f.router, http.MethodPost, "/v1/auth/signin", map[string]string{
		"email": "  ADA@example.COM\t", "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestSignIn_AndSession(t *testing.T) {
	f := newAuthFixture(t)
	creds := map[string]string{"email": "ada@example.com", "password": "correct-horse"}
	require.Equal(t, http.StatusCreated, doJSON(t, f.router, http.MethodPost, "/v1/auth/signup", creds).Code)

	w := doJSON(t, f.router, http.MethodPost, "/v1/auth/signin", creds)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tokens := decode[tokenResponse](t, w)

	w = doJSON(t, f.router, http.MethodGet, "/v1/auth/session", nil, "Authorization", "Bearer "+tokens.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	session := decode[sessionResponse](t, w)
	assert.Equal(t, "ada@example.com", session.Email)
	assert.Equal(t, "free", session.Plan)
	assert.False(t, session.Onboarded)
}

func TestSession_RequiresToken(t *testing.T) {
	f := newAuthFixture(t)

	w := doJSON(t, f.router, http.MethodGet, "/v1/auth/session", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, f.router, http.MethodGet, "/v1/auth/session", nil, "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignIn_LocksAfterRepeatedFailures(t *testing.T) {
	f := newAuthFixture(t)
	require.Equal(t, http.StatusCreated, doJSON(t, f.router, http.MethodPost, "/v1/auth/signup", map[string]string{
		"email": "ada@example.com", "password": "correct-horse",
	}).Code)

	wrong := map[string]string{"email": "ada@example.com", "password": "wrong-password"}
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, doJSON(t, f.router, http.MethodPost, "/v1/auth/signin", wrong).Code)
	}

	// 锁定期间正确口令也被拒绝
	w := doJSON(t, f.router, http.MethodPost, "/v1/auth/signin", map[string]string{
		"email": "ada@example.com", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRefresh_RotatesToken(t *testing.T) {
	f := newAuthFixture(t)
	require.Equal(t, http.StatusCreated, doJSON(t, f.router, http.MethodPost, "/v1/auth/signup", map[string]string{
		"email": "ada@example.com", "password": "correct-horse",
	}).Code)

	var user database.User
	require.NoError(t, f.db.Take(&user).Error)
	pair, err := f.service.GenerateTokenPair(user.ID, user.Email)
	require.NoError(t, err)

	body := map[string]string{"refresh_token": pair.RefreshToken}
	w := doJSON(t, f.router, http.MethodPost, "/v1/auth/refresh", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 旧令牌已进入黑名单
	w = doJSON(t, f.router, http.MethodPost, "/v1/auth/refresh", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, f.publisher.names(), auth.SessionRefreshed)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	pair, err := f.service.GenerateTokenPair(1, "ada@example.com")
	require.NoError(t, err)

	w := doJSON(t, f.router, http.MethodPost, "/v1/auth/refresh", map[string]string{"refresh_token": pair.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignOut_RevokesRefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	require.Equal(t, http.StatusCreated, doJSON(t, f.router, http.MethodPost, "/v1/auth/signup", map[string]string{
		"email": "ada@example.com", "password": "correct-horse",
	}).Code)
	var user database.User
	require.NoError(t, f.db.Take(&user).Error)
	pair, err := f.service.GenerateTokenPair(user.ID, user.Email)
	require.NoError(t, err)

	w := doJSON(t, f.router, http.MethodPost, "/v1/auth/signout",
		map[string]string{"refresh_token": pair.RefreshToken},
		"Authorization", "Bearer "+pair.AccessToken)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = doJSON(t, f.router, http.MethodPost, "/v1/auth/refresh", map[string]string{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, f.publisher.names(), auth.SessionSignedOut)
}
