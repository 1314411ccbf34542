package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier(Config{Secret: "s3cret", Issuer: "ecoscore"})
	require.True(t, v.Enabled())

	token, err := v.Issue("u1", time.Minute)
	require.NoError(t, err)

	subject, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", subject)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier(Config{Secret: "s3cret", Issuer: "ecoscore"})

	sign := func(method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := jwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "ecoscore",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"
	noSubject := valid
	noSubject.Subject = ""

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(jwt.SigningMethodHS256, []byte("other"), valid)},
		{"expired", sign(jwt.SigningMethodHS256, []byte("s3cret"), expired)},
		{"wrong issuer", sign(jwt.SigningMethodHS256, []byte("s3cret"), wrongIssuer)},
		{"no subject", sign(jwt.SigningMethodHS256, []byte("s3cret"), noSubject)},
		{"hs512", sign(jwt.SigningMethodHS512, []byte("s3cret"), valid)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestVerifier_Disabled(t *testing.T) {
	v := NewVerifier(Config{})
	assert.False(t, v.Enabled())

	_, err := v.Verify("anything")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = v.Issue("u1", time.Minute)
	assert.Error(t, err)

	var nilVerifier *Verifier
	assert.False(t, nilVerifier.Enabled())
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}

func TestUserIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, UserID(ctx))
	assert.Equal(t, "u1", UserID(WithUserID(ctx, "u1")))
}
