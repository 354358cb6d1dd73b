package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the identity a verified token carries: who is acting, from
// which device, inside which household.
type Claims struct {
	UserID      string
	HouseholdID string
	DeviceID    string
	SessionID   string
}

// TokenIssuer mints and verifies the HS256 bearer tokens used between
// devices and the hub.
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
}

func NewTokenIssuer(secret string, expiry time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), expiry: expiry}
}

// Issue signs a token for the given identity. Each token gets a fresh
// session id so individual sessions can be revoked later.
func (i *TokenIssuer) Issue(userID, householdID, deviceID string) (token string, expiresAt time.Time, err error) {
	expiresAt = time.Now().Add(i.expiry)
	claims := jwt.MapClaims{
		"sub":          userID,
		"household_id": householdID,
		"device_id":    deviceID,
		"jti":          uuid.New().String(),
		"exp":          expiresAt.Unix(),
		"iat":          time.Now().Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and expiry and extracts the identity.
// Every failure mode collapses to ErrInvalidToken; callers have no
// reason to distinguish a forged token from an expired one.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	householdID, ok := claims["household_id"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	deviceID, ok := claims["device_id"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	sessionID, ok := claims["jti"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}

	return &Claims{
		UserID:      userID,
		HouseholdID: householdID,
		DeviceID:    deviceID,
		SessionID:   sessionID,
	}, nil
}
