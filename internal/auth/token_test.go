package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIssueAndParseToken(t *testing.T) {
	userID := primitive.NewObjectID()

	raw, err := IssueToken("secret", userID, RoleAdmin, time.Hour)
	require.NoError(t, err)

	gotID, role, err := ParseToken("secret", raw)
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, RoleAdmin, role)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	raw, err := IssueToken("secret", primitive.NewObjectID(), RoleCustomer, time.Hour)
	require.NoError(t, err)

	_, _, err = ParseToken("other", raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	raw, err := IssueToken("secret", primitive.NewObjectID(), RoleCustomer, -time.Minute)
	require.NoError(t, err)

	_, _, err = ParseToken("secret", raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsMalformedUserID(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": "not-an-id", "role": RoleCustomer})
	raw, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, _, err = ParseToken("secret", raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenDefaultsRoleToCustomer(t *testing.T) {
	userID := primitive.NewObjectID()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": userID.Hex()})
	raw, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, role, err := ParseToken("secret", raw)
	require.NoError(t, err)
	assert.Equal(t, RoleCustomer, role)
}
