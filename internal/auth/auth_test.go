package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/repository"
)

type stubAccounts struct {
	accounts map[string]*model.Account
	err      error
}

func (s *stubAccounts) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	a, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func newTestIssuer(t *testing.T, now time.Time) *Issuer {
	t.Helper()

	issuer, err := NewIssuer("test-secret", DefaultTokenTTL)
	require.NoError(t, err)
	issuer.now = func() time.Time { return now }
	return issuer
}

func requireReason(t *testing.T, err error, want Reason) {
	t.Helper()

	var authErr *Error
	require.True(t, errors.As(err, &authErr), "expected *auth.Error, got %v", err)
	assert.Equal(t, want, authErr.Reason)
}

func TestNewIssuer_EmptySecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestCredentials_HashAndVerify(t *testing.T) {
	c := NewCredentials(bcrypt.MinCost)

	hash, err := c.Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, c.Verify(hash, "correct horse"))
	assert.False(t, c.Verify(hash, "wrong horse"))

	_, err = c.Hash("abc")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestAuthorize(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, now)

	accounts := &stubAccounts{accounts: map[string]*model.Account{
		"u1": {ID: "u1", Role: model.RoleUser, SessionVersion: 3},
		"u2": {ID: "u2", Role: model.RoleUser, SessionVersion: 1, Blocked: true},
	}}
	v := NewValidator(issuer, accounts)

	valid, _, err := issuer.Issue("u1", model.RoleUser, 3)
	require.NoError(t, err)
	stale, _, err := issuer.Issue("u1", model.RoleUser, 2)
	require.NoError(t, err)
	blocked, _, err := issuer.Issue("u2", model.RoleUser, 1)
	require.NoError(t, err)
	unknown, _, err := issuer.Issue("ghost", model.RoleUser, 1)
	require.NoError(t, err)

	other, err := NewIssuer("other-secret", DefaultTokenTTL)
	require.NoError(t, err)
	foreign, _, err := other.Issue("u1", model.RoleUser, 3)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Version:          3,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		reason Reason
	}{
		{name: "garbage", token: "not-a-token", reason: ReasonMalformed},
		{name: "wrong signature", token: foreign, reason: ReasonMalformed},
		{name: "alg none", token: unsigned, reason: ReasonMalformed},
		{name: "unknown subject", token: unknown, reason: ReasonUnknownSubject},
		{name: "blocked", token: blocked, reason: ReasonBlocked},
		{name: "stale version", token: stale, reason: ReasonStaleSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Authorize(context.Background(), tt.token)
			requireReason(t, err, tt.reason)
		})
	}

	t.Run("valid", func(t *testing.T) {
		account, err := v.Authorize(context.Background(), valid)
		require.NoError(t, err)
		assert.Equal(t, "u1", account.ID)
	})
}

func TestAuthorize_Expired(t *testing.T) {
	issuedAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, issuedAt)
	accounts := &stubAccounts{accounts: map[string]*model.Account{"u1": {ID: "u1", SessionVersion: 1}}}
	v := NewValidator(issuer, accounts)

	token, expiresAt, err := issuer.Issue("u1", model.RoleUser, 1)
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(24*time.Hour), expiresAt)

	issuer.now = func() time.Time { return issuedAt.Add(23 * time.Hour) }
	_, err = v.Authorize(context.Background(), token)
	require.NoError(t, err)

	issuer.now = func() time.Time { return issuedAt.Add(25 * time.Hour) }
	_, err = v.Authorize(context.Background(), token)
	requireReason(t, err, ReasonExpired)
}

func TestAuthorize_VersionBumpInvalidatesImmediately(t *testing.T) {
	issuer := newTestIssuer(t, time.Now())
	account := &model.Account{ID: "u1", SessionVersion: 1}
	accounts := &stubAccounts{accounts: map[string]*model.Account{"u1": account}}
	v := NewValidator(issuer, accounts)

	token, _, err := issuer.Issue("u1", model.RoleUser, 1)
	require.NoError(t, err)

	_, err = v.Authorize(context.Background(), token)
	require.NoError(t, err)

	account.SessionVersion++

	_, err = v.Authorize(context.Background(), token)
	assert.ErrorIs(t, err, &Error{Reason: ReasonStaleSession})
}

func TestAuthorize_StoreFailureIsNotAuthError(t *testing.T) {
	issuer := newTestIssuer(t, time.Now())
	storeErr := errors.New("connection reset by peer")
	v := NewValidator(issuer, &stubAccounts{err: storeErr})

	token, _, err := issuer.Issue("u1", model.RoleUser, 1)
	require.NoError(t, err)

	_, err = v.Authorize(context.Background(), token)
	require.ErrorIs(t, err, storeErr)

	var authErr *Error
	assert.False(t, errors.As(err, &authErr))
}
