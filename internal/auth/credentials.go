// Package auth содержит хранилище учётных данных, выпуск сессионных токенов и проверку сессий.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength задаёт минимальную длину пароля.
const MinPasswordLength = 6

// ErrWeakPassword возвращается, если пароль короче MinPasswordLength.
var ErrWeakPassword = errors.New("password is too short")

// Credentials хеширует и проверяет пароли с помощью bcrypt.
type Credentials struct {
	cost int
}

// NewCredentials создаёт хранилище учётных данных. cost <= 0 означает стоимость bcrypt по умолчанию.
func NewCredentials(cost int) *Credentials {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Credentials{cost: cost}
}

// Hash возвращает bcrypt-хеш пароля.
func (c *Credentials) Hash(password string) ([]byte, error) {
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// Verify сравнивает пароль с сохранённым хешем.
func (c *Credentials) Verify(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
