package repository

import (
	"context"

	"github.com/mmeshcher/marketplace/internal/model"
)

// VendorHistory предоставляет историю продаж и выплат продавца.
type VendorHistory interface {
	ListVendorItems(ctx context.Context, vendorID string) ([]model.LineItem, error)
	ListWithdrawalsByVendor(ctx context.Context, vendorID string) ([]model.Withdrawal, error)
}

// PayoutCheck проверяет заявку перед подтверждением. history читает данные в той же
// транзакции, что удерживает блокировку продавца, и не занимает других соединений.
type PayoutCheck func(ctx context.Context, history VendorHistory, w model.Withdrawal) error
