// Package repository содержит реализации хранилища маркетплейса: PostgreSQL и in-memory.
package repository

import "errors"

var (
	// ErrNotFound возвращается, если запрошенная запись отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrAccountExists возвращается при повторной регистрации email или телефона.
	ErrAccountExists = errors.New("account already exists")
	// ErrConflict возвращается, если запись находится не в том состоянии, которое ожидала операция.
	ErrConflict = errors.New("state conflict")
	// ErrCouponNotFound возвращается, если активный непросроченный купон с таким кодом не найден.
	ErrCouponNotFound = errors.New("coupon not found or expired")
	// ErrCouponLimitReached возвращается, если лимит использований купона исчерпан.
	ErrCouponLimitReached = errors.New("coupon usage limit reached")
	// ErrCouponExists возвращается, если активный купон с таким кодом уже существует.
	ErrCouponExists = errors.New("active coupon with this code already exists")
)
