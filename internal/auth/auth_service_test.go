package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *AuthService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})

	svc, err := NewAuthService(privatePEM, publicPEM, 15*time.Minute, time.Hour)
	require.NoError(t, err)
	return svc
}

func TestGenerateAndValidateTokenPair(t *testing.T) {
	svc := newTestService(t)

	pair, err := svc.GenerateTokenPair(42, "ada@example.com")
	require.NoError(t, err)

	access, err := svc.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(42), access.UserID)
	assert.Equal(t, TokenTypeAccess, access.TokenType)
	assert.Equal(t, "ada@example.com", access.Email)

	refresh, err := svc.ValidateToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, refresh.TokenType)
	assert.NotEmpty(t, refresh.ID)
}

func TestValidateToken_Expired(t *testing.T) {
	svc := newTestService(t)
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	pair, err := svc.GenerateTokenPair(1, "")
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(time.Hour) }
	_, err = svc.ValidateToken(pair.AccessToken)
	assert.Error(t, err)
}

func TestValidateToken_Empty(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.ValidateToken("")
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("correct horse battery", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

type recordingPublisher struct {
	channel string
	payload []byte
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channel = channel
	p.payload, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func TestSessionNotifier(t *testing.T) {
	pub := &recordingPublisher{}
	notifier := NewSessionNotifier(pub)

	require.NoError(t, notifier.Notify(context.Background(), 7, SessionSignedOut))
	assert.Equal(t, "user_notify:7", pub.channel)

	var event SessionEvent
	require.NoError(t, json.Unmarshal(pub.payload, &event))
	assert.Equal(t, "session", event.Type)
	assert.Equal(t, SessionSignedOut, event.Event)
	assert.Equal(t, uint(7), event.UserID)
}
