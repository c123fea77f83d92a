package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmeshcher/marketplace/internal/model"
)

// DefaultTokenTTL задаёт срок жизни сессионного токена.
const DefaultTokenTTL = 24 * time.Hour

// ErrMissingSecret возвращается при создании Issuer без ключа подписи.
var ErrMissingSecret = errors.New("token signing secret is empty")

// Claims содержит полезную нагрузку сессионного токена.
type Claims struct {
	Role    model.Role `json:"role"`
	Version int64      `json:"ver"`
	jwt.RegisteredClaims
}

// Issuer выпускает подписанные HS256 токены.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer создаёт Issuer. Пустой ключ считается ошибкой конфигурации.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue выпускает токен с идентификатором, ролью и снимком версии сессии.
func (i *Issuer) Issue(accountID string, role model.Role, sessionVersion int64) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		Role:    role,
		Version: sessionVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// parse проверяет подпись и срок действия токена.
func (i *Issuer) parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &Error{Reason: ReasonExpired, Err: err}
		}
		return nil, &Error{Reason: ReasonMalformed, Err: err}
	}
	if claims.Subject == "" {
		return nil, &Error{Reason: ReasonMalformed, Err: errors.New("token has no subject")}
	}
	return claims, nil
}
