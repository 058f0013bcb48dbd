package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Validator resolves the authenticated user identity from a bearer token.
type Validator struct {
	secret []byte
	pub    *rsa.PublicKey
}

func NewValidatorHS256(secret string) (*Validator, error) {
	if secret == "" {
		return nil, errors.New("empty hs256 secret")
	}
	return &Validator{secret: []byte(secret)}, nil
}

func NewValidatorRS256(pubKeyPath string) (*Validator, error) {
	b, err := os.ReadFile(pubKeyPath)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, err
	}
	return &Validator{pub: pub}, nil
}

// Validate checks the token and returns the subject claim.
func (v *Validator) Validate(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodHMAC:
			if v.secret == nil {
				return nil, errors.New("hmac token not accepted")
			}
			return v.secret, nil
		case *jwt.SigningMethodRSA:
			if v.pub == nil {
				return nil, errors.New("rsa token not accepted")
			}
			return v.pub, nil
		default:
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("missing subject")
	}
	return sub, nil
}
