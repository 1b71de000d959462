package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(t *testing.T) *Manager {
	m, err := NewManager(Config{Secret: testSecret, Issuer: "dealer-admin", TTL: time.Hour})
	require.NoError(t, err)
	return m
}

func TestNewManager(t *testing.T) {
	_, err := NewManager(Config{})
	assert.Error(t, err)

	m, err := NewManager(Config{Secret: testSecret})
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, m.TTL())
}

func TestIssueAndValidate(t *testing.T) {
	m := newTestManager(t)
	userID, sessionID := uuid.New(), uuid.New()

	token, issued, err := m.Issue(userID, sessionID)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, time.Hour, issued.ExpiresAt.Sub(issued.IssuedAt))

	parsed, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, parsed.UserID)
	assert.Equal(t, sessionID, parsed.SessionID)
	assert.True(t, parsed.ExpiresAt.Equal(issued.ExpiresAt))

	sid, err := PeekSessionID(token)
	require.NoError(t, err)
	assert.Equal(t, sessionID, sid)
}

func TestValidateToken_Expired(t *testing.T) {
	m := newTestManager(t)
	issuedAt := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issuedAt }

	token, _, err := m.Issue(uuid.New(), uuid.New())
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// expired tokens can still be revoked by session id
	_, err = PeekSessionID(token)
	assert.NoError(t, err)
}

func TestValidateToken_Rejections(t *testing.T) {
	m := newTestManager(t)
	userID, sessionID := uuid.New(), uuid.New()

	other, err := NewManager(Config{Secret: []byte("another-secret-another-secret-!!"), Issuer: "dealer-admin"})
	require.NoError(t, err)
	foreignSig, _, err := other.Issue(userID, sessionID)
	require.NoError(t, err)

	wrongIssuer, err := NewManager(Config{Secret: testSecret, Issuer: "someone-else"})
	require.NoError(t, err)
	foreignIss, _, err := wrongIssuer.Issue(userID, sessionID)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    "dealer-admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		SessionID: sessionID.String(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	missingSID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    "dealer-admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(testSecret)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String(), Issuer: "dealer-admin"},
		SessionID:        sessionID.String(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"garbage", "not.a.token", ErrInvalidToken},
		{"wrong secret", foreignSig, ErrInvalidToken},
		{"wrong issuer", foreignIss, ErrInvalidIssuer},
		{"none algorithm", noneAlg, ErrInvalidToken},
		{"missing sid", missingSID, ErrInvalidToken},
		{"missing expiry", noExpiry, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
