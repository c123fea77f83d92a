package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace/internal/model"
)

// DefaultPayoutMethod используется, если продавец не указал способ выплаты.
const DefaultPayoutMethod = "bank_transfer"

// Finance содержит финансовые показатели продавца и историю выплат.
type Finance struct {
	Ledger      model.Ledger
	Withdrawals []model.Withdrawal
}

// VendorFinance пересчитывает показатели продавца по всей истории заказов.
func (s *Service) VendorFinance(ctx context.Context, vendor *model.Account) (*Finance, error) {
	if err := requireActiveVendor(vendor); err != nil {
		return nil, err
	}

	ledger, withdrawals, err := s.settlement.Statement(ctx, vendor.ID)
	if err != nil {
		return nil, err
	}
	return &Finance{Ledger: ledger, Withdrawals: withdrawals}, nil
}

// RequestWithdrawal создаёт заявку на выплату в статусе pending.
func (s *Service) RequestWithdrawal(ctx context.Context, vendor *model.Account, amount decimal.Decimal, method string) (*model.Withdrawal, error) {
	if err := requireActiveVendor(vendor); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: withdraw amount must be positive", ErrInvalidInput)
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, fmt.Errorf("%w: withdraw amount has more than two decimal places", ErrInvalidInput)
	}

	method = strings.TrimSpace(method)
	if method == "" {
		method = DefaultPayoutMethod
	}

	w := &model.Withdrawal{
		ID:        uuid.NewString(),
		VendorID:  vendor.ID,
		Amount:    amount,
		Method:    method,
		Status:    model.WithdrawalStatusPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateWithdrawal(ctx, w); err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal requested",
		zap.String("withdrawalID", w.ID),
		zap.String("vendorID", vendor.ID),
		zap.String("amount", amount.StringFixed(2)))
	return w, nil
}
