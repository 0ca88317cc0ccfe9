package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTokenDuration  = 15 * time.Minute
	RefreshTokenDuration = 30 * 24 * time.Hour
)

// Secrets holds the HMAC keys for the two token kinds.
type Secrets struct {
	Access  []byte
	Refresh []byte
}

// Claims represents JWT claims. Subject is the user id, ID the session jti.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID parses the subject.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// GenerateTokens signs an access and a refresh token sharing one jti.
func GenerateTokens(userID uuid.UUID, secrets Secrets) (string, string, string, error) {
	jti := uuid.NewString()
	now := time.Now()

	access, err := sign(userID, jti, now, AccessTokenDuration, secrets.Access)
	if err != nil {
		return "", "", "", err
	}
	refresh, err := sign(userID, jti, now, RefreshTokenDuration, secrets.Refresh)
	if err != nil {
		return "", "", "", err
	}
	return access, refresh, jti, nil
}

func sign(userID uuid.UUID, jti string, now time.Time, ttl time.Duration, secret []byte) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyJWT parses and validates a JWT string.
func VerifyJWT(tokenStr string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.ID == "" {
			return nil, errors.New("token has no id")
		}
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
