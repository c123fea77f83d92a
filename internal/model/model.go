// Package model содержит доменные сущности маркетплейса.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role описывает роль учётной записи.
type Role string

const (
	RoleUser   Role = "user"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

// VendorStatus описывает статус модерации продавца.
type VendorStatus string

const (
	VendorStatusPending  VendorStatus = "pending"
	VendorStatusActive   VendorStatus = "active"
	VendorStatusRejected VendorStatus = "rejected"
)

// InitialSessionVersion задаёт версию сессии новой учётной записи.
const InitialSessionVersion int64 = 1

// Account представляет учётную запись покупателя, продавца или администратора.
type Account struct {
	ID              string
	Role            Role
	Name            string
	Email           string
	Phone           string
	PasswordHash    []byte
	Blocked         bool
	SessionVersion  int64
	VendorStatus    VendorStatus
	RejectionReason string
	CreatedAt       time.Time
}

// IsActiveVendor сообщает, может ли учётная запись выполнять операции продавца.
func (a *Account) IsActiveVendor() bool {
	return a.Role == RoleVendor && a.VendorStatus == VendorStatusActive
}

// Product содержит данные товара из внешнего каталога, необходимые для оформления заказа.
type Product struct {
	ID         string
	VendorID   string
	Name       string
	Price      decimal.Decimal
	SalesCount int64
}

// Ledger содержит производные финансовые показатели продавца.
type Ledger struct {
	Gross      decimal.Decimal `json:"gross"`
	Commission decimal.Decimal `json:"commission"`
	Net        decimal.Decimal `json:"net"`
	Withdrawn  decimal.Decimal `json:"withdrawn"`
	Pending    decimal.Decimal `json:"pending"`
	Available  decimal.Decimal `json:"available"`
}
