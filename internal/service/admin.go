package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/notify"
	"github.com/mmeshcher/marketplace/internal/repository"
)

// Block блокирует учётную запись. Все ранее выданные токены перестают действовать.
func (s *Service) Block(ctx context.Context, actor *model.Account, id string) (*model.Account, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	if actor.ID == id {
		return nil, fmt.Errorf("%w: cannot block yourself", ErrForbidden)
	}

	a, err := s.repo.SetBlocked(ctx, id, true)
	if err != nil {
		return nil, err
	}
	s.logger.Info("account blocked", zap.String("accountID", id), zap.String("adminID", actor.ID))
	return a, nil
}

// Unblock снимает блокировку. Версия сессии тоже растёт.
func (s *Service) Unblock(ctx context.Context, actor *model.Account, id string) (*model.Account, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	a, err := s.repo.SetBlocked(ctx, id, false)
	if err != nil {
		return nil, err
	}
	s.logger.Info("account unblocked", zap.String("accountID", id), zap.String("adminID", actor.ID))
	s.notify(ctx, id, "Account restored", "Your account has been unblocked. Please sign in again.", notify.KindModeration)
	return a, nil
}

// ForceLogout завершает все сессии учётной записи.
func (s *Service) ForceLogout(ctx context.Context, actor *model.Account, id string) (*model.Account, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	a, err := s.repo.BumpSessionVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("sessions revoked", zap.String("accountID", id), zap.String("adminID", actor.ID))
	return a, nil
}

// ApproveVendor переводит продавца из pending в active.
func (s *Service) ApproveVendor(ctx context.Context, actor *model.Account, id string) (*model.Account, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	a, err := s.transitionVendor(ctx, id, model.VendorStatusActive, "")
	if err != nil {
		return nil, err
	}
	s.notify(ctx, id, "Vendor approved", "Your vendor account is active. You can now sign in and start selling.", notify.KindVendor)
	return a, nil
}

// RejectVendor переводит продавца из pending в rejected. Возврата из rejected нет.
func (s *Service) RejectVendor(ctx context.Context, actor *model.Account, id, reason string) (*model.Account, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	a, err := s.transitionVendor(ctx, id, model.VendorStatusRejected, reason)
	if err != nil {
		return nil, err
	}

	msg := "Your vendor application has been rejected."
	if reason != "" {
		msg += " Reason: " + reason
	}
	s.notify(ctx, id, "Vendor rejected", msg, notify.KindVendor)
	return a, nil
}

func (s *Service) transitionVendor(ctx context.Context, id string, to model.VendorStatus, reason string) (*model.Account, error) {
	a, err := s.repo.TransitionVendorStatus(ctx, id, model.VendorStatusPending, to, reason)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: vendor %s is not pending", ErrInvalidTransition, id)
		}
		return nil, err
	}
	s.logger.Info("vendor status changed", zap.String("vendorID", id), zap.String("status", string(to)))
	return a, nil
}

// ListPendingPayouts возвращает заявки на выплату, ожидающие решения.
func (s *Service) ListPendingPayouts(ctx context.Context, actor *model.Account) ([]model.Withdrawal, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListWithdrawalsByStatus(ctx, model.WithdrawalStatusPending)
}

// ApprovePayout подтверждает выплату. Баланс продавца проверяется под блокировкой продавца.
func (s *Service) ApprovePayout(ctx context.Context, actor *model.Account, id string) (*model.Withdrawal, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	w, err := s.repo.CompleteWithdrawal(ctx, id, func(ctx context.Context, history repository.VendorHistory, w model.Withdrawal) error {
		return s.settlement.VerifyPayoutFrom(ctx, history, w)
	})
	if err != nil {
		return nil, s.payoutError(id, err)
	}

	s.logger.Info("payout approved",
		zap.String("withdrawalID", id),
		zap.String("vendorID", w.VendorID),
		zap.String("amount", w.Amount.StringFixed(2)))
	s.notify(ctx, w.VendorID, "Payout completed",
		fmt.Sprintf("Your withdrawal of %s has been processed.", w.Amount.StringFixed(2)), notify.KindPayout)
	return w, nil
}

// RejectPayout отклоняет выплату.
func (s *Service) RejectPayout(ctx context.Context, actor *model.Account, id, reason string) (*model.Withdrawal, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	w, err := s.repo.RejectWithdrawal(ctx, id, reason)
	if err != nil {
		return nil, s.payoutError(id, err)
	}

	msg := fmt.Sprintf("Your withdrawal of %s has been rejected.", w.Amount.StringFixed(2))
	if reason != "" {
		msg += " Reason: " + reason
	}
	s.notify(ctx, w.VendorID, "Payout rejected", msg, notify.KindPayout)
	return w, nil
}

func (s *Service) payoutError(id string, err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%w: withdrawal %s is already processed", ErrInvalidTransition, id)
	}
	return err
}
