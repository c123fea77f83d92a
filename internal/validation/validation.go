// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
)

// IsValidEmail выполняет упрощённую проверку адреса: одна '@', непустые части, точка в домене.
func IsValidEmail(email string) bool {
	if email == "" || strings.ContainsFunc(email, unicode.IsSpace) {
		return false
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return false
	}

	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}

// IsValidPhone проверяет номер телефона: необязательный '+' и от 7 до 15 цифр.
func IsValidPhone(phone string) bool {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return false
	}

	for _, ch := range digits {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// IsValidCouponCode проверяет нормализованный код купона: 3–32 символа из букв, цифр, '-' и '_'.
func IsValidCouponCode(code string) bool {
	if len(code) < 3 || len(code) > 32 {
		return false
	}

	for _, ch := range code {
		if ch > unicode.MaxASCII {
			return false
		}
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) && ch != '-' && ch != '_' {
			return false
		}
	}
	return true
}
