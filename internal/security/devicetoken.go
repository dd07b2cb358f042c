package security

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token is malformed or invalid.
var ErrInvalidToken = errors.New("invalid token")

// DeviceClaims holds the JWT claims for a poll-authentication token.
type DeviceClaims struct {
	jwt.RegisteredClaims
	AppVersion int `json:"app_version"`
}

// TokenIssuer mints short-lived ES256 tokens the poll client presents as a
// bearer credential. The authority holds the device's public key from
// enrollment.
type TokenIssuer struct {
	key      *ecdsa.PrivateKey
	deviceID string
	issuer   string
	audience string
	ttl      time.Duration

	nowF func() time.Time
}

// NewTokenIssuer returns a TokenIssuer signing with the device key.
func NewTokenIssuer(key *ecdsa.PrivateKey, deviceID, issuer, audience string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		key:      key,
		deviceID: deviceID,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		nowF:     time.Now,
	}
}

// Issue mints a token for one poll round. Returns the signed token and its
// expiration time.
func (p *TokenIssuer) Issue(appVersion int) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.nowF().UTC()
	expiresAt = now.Add(p.ttl)
	claims := DeviceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   p.deviceID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		AppVersion: appVersion,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token, err = t.SignedString(p.key)
	return token, expiresAt, err
}

// Validate parses and verifies a token against pub (signature, exp, iss,
// aud). Used in tests and by an authority-side verifier.
func Validate(tokenString string, pub *ecdsa.PublicKey, issuer, audience string) (deviceID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &DeviceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return pub, nil
		}
		return nil, ErrInvalidToken
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*DeviceClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Issuer != issuer {
		return "", ErrInvalidToken
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
