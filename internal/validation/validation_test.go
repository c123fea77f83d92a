package validation

import "testing"

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{name: "plain", email: "buyer@example.com", valid: true},
		{name: "subdomain", email: "a.b@mail.example.org", valid: true},
		{name: "no at", email: "buyer.example.com", valid: false},
		{name: "two ats", email: "a@b@example.com", valid: false},
		{name: "no tld", email: "buyer@example", valid: false},
		{name: "trailing dot", email: "buyer@example.", valid: false},
		{name: "spaces", email: "bu yer@example.com", valid: false},
		{name: "empty", email: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidEmail(tt.email); got != tt.valid {
				t.Fatalf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.valid)
			}
		})
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		valid bool
	}{
		{name: "international", phone: "+4915112345678", valid: true},
		{name: "local", phone: "5551234", valid: true},
		{name: "too short", phone: "+12345", valid: false},
		{name: "letters", phone: "+1555abc4567", valid: false},
		{name: "too long", phone: "+1234567890123456", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidPhone(tt.phone); got != tt.valid {
				t.Fatalf("IsValidPhone(%q) = %v, want %v", tt.phone, got, tt.valid)
			}
		})
	}
}

func TestIsValidCouponCode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{code: "SPRING-10", valid: true},
		{code: "VIP_2026", valid: true},
		{code: "AB", valid: false},
		{code: "HAS SPACE", valid: false},
		{code: "ÜBER10", valid: false},
		{code: "X12345678901234567890123456789012", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := IsValidCouponCode(tt.code); got != tt.valid {
				t.Fatalf("IsValidCouponCode(%q) = %v, want %v", tt.code, got, tt.valid)
			}
		})
	}
}
