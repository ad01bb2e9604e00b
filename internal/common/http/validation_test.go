package http_test

import (
	"testing"

	commonhttp "github.com/psytech/auth-backend/internal/common/http"
)

type otpRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,e164"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
}

func TestValidateStruct_Valid(t *testing.T) {
	fields := commonhttp.ValidateStruct(otpRequest{
		PhoneNumber: "+15551234567",
		OTP:         "482913",
	})
	if fields != nil {
		t.Fatalf("expected no validation errors, got %v", fields)
	}
}

func TestValidateStruct_PhoneNumber(t *testing.T) {
	for _, phone := range []string{"", "15551234567", "+0155512345", "not-a-phone", "+1 555 123"} {
		fields := commonhttp.ValidateStruct(otpRequest{PhoneNumber: phone, OTP: "482913"})
		if fields == nil {
			t.Errorf("phone %q: expected a validation error", phone)
			continue
		}
		if _, ok := fields["phoneNumber"]; !ok {
			t.Errorf("phone %q: expected error keyed by json name, got %v", phone, fields)
		}
	}
}

func TestValidateStruct_OTP(t *testing.T) {
	for _, otp := range []string{"", "12345", "1234567", "48291a", "++++++"} {
		fields := commonhttp.ValidateStruct(otpRequest{PhoneNumber: "+15551234567", OTP: otp})
		if fields == nil {
			t.Errorf("otp %q: expected a validation error", otp)
			continue
		}
		if _, ok := fields["otp"]; !ok {
			t.Errorf("otp %q: expected error keyed by json name, got %v", otp, fields)
		}
	}
}

func TestFirstValidationMessage_PrefersPhoneNumber(t *testing.T) {
	fields := commonhttp.ValidateStruct(otpRequest{})
	msg := commonhttp.FirstValidationMessage(fields)
	if msg != "phoneNumber is required" {
		t.Errorf("expected phoneNumber message first, got %q", msg)
	}

	if commonhttp.FirstValidationMessage(nil) != "" {
		t.Error("expected empty message for nil fields")
	}
}
