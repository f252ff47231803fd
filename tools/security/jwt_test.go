package security

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerify(t *testing.T) {
	req := require.New(t)
	opts := DefaultOptions([]byte("secret"))

	token, exp, err := Generate(opts, "user-a")
	req.NoError(err)
	req.True(exp.After(time.Now()))

	id, err := Verify(opts, token)
	req.NoError(err)
	req.Equal("user-a", id)
}

func TestVerify_WrongSecret(t *testing.T) {
	req := require.New(t)

	token, _, err := Generate(DefaultOptions([]byte("secret")), "user-a")
	req.NoError(err)

	_, err = Verify(DefaultOptions([]byte("other")), token)
	req.Error(err)
}

func TestVerify_Expired(t *testing.T) {
	req := require.New(t)
	opts := DefaultOptions([]byte("secret"))

	claims := Claims{
		UserID: "user-a",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(opts.Secret)
	req.NoError(err)

	_, err = Verify(opts, token)
	req.ErrorIs(err, jwtlib.ErrTokenExpired)
}

func TestVerify_SubjectOnly(t *testing.T) {
	req := require.New(t)
	opts := DefaultOptions([]byte("secret"))

	claims := jwtlib.RegisteredClaims{
		Subject:   "user-b",
		ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(opts.Secret)
	req.NoError(err)

	id, err := Verify(opts, token)
	req.NoError(err)
	req.Equal("user-b", id)
}

func TestBearerToken(t *testing.T) {
	req := require.New(t)

	req.Equal("abc", BearerToken("Bearer abc"))
	req.Equal("abc", BearerToken("bearer   abc "))
	req.Empty(BearerToken("Basic abc"))
	req.Empty(BearerToken("Bearer "))
}
