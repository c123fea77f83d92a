package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/marketplace/internal/auth"
	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/notify"
	"github.com/mmeshcher/marketplace/internal/repository"
)

func newTestService(t *testing.T, opts Options) (*Service, *repository.MemoryStore, *auth.Issuer) {
	t.Helper()

	store := repository.NewMemoryStore()
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}
	opts.PasswordCost = bcrypt.MinCost
	svc := NewService(store, issuer, notify.NewEmitter(store, nil, zap.NewNop()), zap.NewNop(), opts)
	return svc, store, issuer
}

func mustAdmin(t *testing.T, svc *Service) *model.Account {
	t.Helper()

	if err := svc.EnsureAdmin(context.Background(), "admin@example.com", "admin-secret"); err != nil {
		t.Fatalf("EnsureAdmin error: %v", err)
	}
	sess, err := svc.Login(context.Background(), "admin@example.com", "admin-secret")
	if err != nil {
		t.Fatalf("admin login error: %v", err)
	}
	return sess.Account
}

func mustSignup(t *testing.T, svc *Service, email string, role model.Role) *Session {
	t.Helper()

	sess, err := svc.Signup(context.Background(), SignupInput{Name: email, Email: email, Password: "secret1", Role: role})
	if err != nil {
		t.Fatalf("Signup(%s) error: %v", email, err)
	}
	return sess
}

func TestSignup_Validation(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()

	tests := []struct {
		name string
		in   SignupInput
		want error
	}{
		{name: "bad email", in: SignupInput{Email: "nope", Password: "secret1"}, want: ErrInvalidInput},
		{name: "bad phone", in: SignupInput{Email: "a@example.com", Phone: "12", Password: "secret1"}, want: ErrInvalidInput},
		{name: "short password", in: SignupInput{Email: "a@example.com", Password: "123"}, want: ErrInvalidInput},
		{name: "admin role", in: SignupInput{Email: "a@example.com", Password: "secret1", Role: model.RoleAdmin}, want: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSignup_DuplicateAndDefaults(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})

	user := mustSignup(t, svc, "buyer@example.com", "")
	if user.Account.Role != model.RoleUser {
		t.Fatalf("default role = %s, want user", user.Account.Role)
	}
	if user.Account.SessionVersion != model.InitialSessionVersion {
		t.Fatalf("SessionVersion = %d, want %d", user.Account.SessionVersion, model.InitialSessionVersion)
	}
	if user.Token == "" {
		t.Fatalf("expected token on signup")
	}

	vendor := mustSignup(t, svc, "shop@example.com", model.RoleVendor)
	if vendor.Account.VendorStatus != model.VendorStatusPending {
		t.Fatalf("vendor status = %s, want pending", vendor.Account.VendorStatus)
	}

	_, err := svc.Signup(context.Background(), SignupInput{Email: "BUYER@example.com", Password: "secret1"})
	if !errors.Is(err, repository.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestLogin_Failures(t *testing.T) {
	svc, store, _ := newTestService(t, Options{})
	ctx := context.Background()
	admin := mustAdmin(t, svc)

	user := mustSignup(t, svc, "buyer@example.com", model.RoleUser)

	if _, err := svc.Login(ctx, "buyer@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "ghost@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown account, got %v", err)
	}

	if _, err := svc.Block(ctx, admin, user.Account.ID); err != nil {
		t.Fatalf("Block error: %v", err)
	}
	if _, err := svc.Login(ctx, "buyer@example.com", "secret1"); !errors.Is(err, ErrAccountBlocked) {
		t.Fatalf("expected ErrAccountBlocked, got %v", err)
	}

	vendor := mustSignup(t, svc, "shop@example.com", model.RoleVendor)
	if _, err := svc.RejectVendor(ctx, admin, vendor.Account.ID, "incomplete documents"); err != nil {
		t.Fatalf("RejectVendor error: %v", err)
	}
	if _, err := svc.Login(ctx, "shop@example.com", "secret1"); !errors.Is(err, ErrVendorNotActive) {
		t.Fatalf("expected ErrVendorNotActive for rejected vendor, got %v", err)
	}
	if _, err := svc.ApproveVendor(ctx, admin, vendor.Account.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("rejected vendor must not be approvable, got %v", err)
	}

	stored, err := store.GetAccountByID(ctx, vendor.Account.ID)
	if err != nil {
		t.Fatalf("GetAccountByID error: %v", err)
	}
	if stored.RejectionReason != "incomplete documents" {
		t.Fatalf("RejectionReason = %q", stored.RejectionReason)
	}
}

func TestModeration_InvalidatesSessionsImmediately(t *testing.T) {
	svc, store, issuer := newTestService(t, Options{})
	ctx := context.Background()
	validator := auth.NewValidator(issuer, store)
	admin := mustAdmin(t, svc)

	user := mustSignup(t, svc, "buyer@example.com", model.RoleUser)
	if _, err := validator.Authorize(ctx, user.Token); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	if _, err := svc.ForceLogout(ctx, admin, user.Account.ID); err != nil {
		t.Fatalf("ForceLogout error: %v", err)
	}
	if _, err := validator.Authorize(ctx, user.Token); !errors.Is(err, &auth.Error{Reason: auth.ReasonStaleSession}) {
		t.Fatalf("expected stale session after force logout, got %v", err)
	}

	relogin, err := svc.Login(ctx, "buyer@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if _, err := svc.Block(ctx, admin, user.Account.ID); err != nil {
		t.Fatalf("Block error: %v", err)
	}
	if _, err := validator.Authorize(ctx, relogin.Token); !errors.Is(err, &auth.Error{Reason: auth.ReasonBlocked}) {
		t.Fatalf("expected blocked, got %v", err)
	}

	if _, err := svc.Unblock(ctx, admin, user.Account.ID); err != nil {
		t.Fatalf("Unblock error: %v", err)
	}
	if _, err := validator.Authorize(ctx, relogin.Token); !errors.Is(err, &auth.Error{Reason: auth.ReasonStaleSession}) {
		t.Fatalf("token issued before block must stay invalid after unblock, got %v", err)
	}
}

func TestAdminOperations_RequireAdmin(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()
	admin := mustAdmin(t, svc)
	user := mustSignup(t, svc, "buyer@example.com", model.RoleUser)

	if _, err := svc.Block(ctx, user.Account, admin.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.ListPendingPayouts(ctx, user.Account); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Block(ctx, admin, admin.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("admin must not block themselves, got %v", err)
	}
	if _, err := svc.ForceLogout(ctx, admin, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()

	if err := svc.EnsureAdmin(ctx, "", ""); err != nil {
		t.Fatalf("empty email must be a no-op, got %v", err)
	}
	if err := svc.EnsureAdmin(ctx, "admin@example.com", "admin-secret"); err != nil {
		t.Fatalf("EnsureAdmin error: %v", err)
	}
	if err := svc.EnsureAdmin(ctx, "admin@example.com", "other-secret"); err != nil {
		t.Fatalf("second EnsureAdmin error: %v", err)
	}

	mustSignup(t, svc, "buyer@example.com", model.RoleUser)
	if err := svc.EnsureAdmin(ctx, "buyer@example.com", "admin-secret"); err == nil {
		t.Fatalf("expected error when email belongs to a non-admin account")
	}
}

func TestNotifications_MarkRead(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()
	admin := mustAdmin(t, svc)
	vendor := mustSignup(t, svc, "shop@example.com", model.RoleVendor)

	if _, err := svc.ApproveVendor(ctx, admin, vendor.Account.ID); err != nil {
		t.Fatalf("ApproveVendor error: %v", err)
	}

	list, err := svc.Notifications(ctx, vendor.Account)
	if err != nil {
		t.Fatalf("Notifications error: %v", err)
	}
	if len(list) != 1 || list[0].Kind != notify.KindVendor || list[0].Read {
		t.Fatalf("unexpected notifications: %+v", list)
	}

	if err := svc.MarkNotificationRead(ctx, vendor.Account, list[0].ID); err != nil {
		t.Fatalf("MarkNotificationRead error: %v", err)
	}
	if err := svc.MarkNotificationRead(ctx, admin, list[0].ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("foreign notification must not be found, got %v", err)
	}
}

// recordingStore запоминает email сохранённых учётных записей.
type recordingStore struct {
	*repository.MemoryStore
	emails []string
}

func (s *recordingStore) CreateAccount(ctx context.Context, a *model.Account) error {
	s.emails = append(s.emails, a.Email)
	return s.MemoryStore.CreateAccount(ctx, a)
}

func TestSignup_StoresEmailLowercase(t *testing.T) {
	store := &recordingStore{MemoryStore: repository.NewMemoryStore()}
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}
	svc := NewService(store, issuer, nil, zap.NewNop(), Options{PasswordCost: bcrypt.MinCost})
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupInput{Email: "  Shop@Example.com ", Password: "secret1", Role: model.RoleVendor}); err != nil {
		t.Fatalf("Signup error: %v", err)
	}
	if err := svc.EnsureAdmin(ctx, "Root@Example.COM", "admin-secret"); err != nil {
		t.Fatalf("EnsureAdmin error: %v", err)
	}

	want := []string{"shop@example.com", "root@example.com"}
	if len(store.emails) != len(want) {
		t.Fatalf("stored emails = %v, want %v", store.emails, want)
	}
	for i := range want {
		if store.emails[i] != want[i] {
			t.Errorf("stored email[%d] = %q, want %q", i, store.emails[i], want[i])
		}
	}

	_, err = svc.Signup(ctx, SignupInput{Email: "SHOP@example.com", Password: "secret1"})
	if !errors.Is(err, repository.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists for a case variant, got %v", err)
	}

	if err := svc.EnsureAdmin(ctx, "root@example.com", "admin-secret"); err != nil {
		t.Fatalf("EnsureAdmin must be idempotent across case, got %v", err)
	}
	for _, identifier := range []string{"Root@Example.COM", "root@example.com"} {
		if _, err := svc.Login(ctx, identifier, "admin-secret"); err != nil {
			t.Errorf("Login(%q) error: %v", identifier, err)
		}
	}
}
