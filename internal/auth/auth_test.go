package auth

import (
	"errors"
	"testing"

	"github.com/danmuck/smsctl/internal/testutil/testlog"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestForToken(t *testing.T) {
	testlog.Start(t)
	if err := ForToken("  ").Validate(""); err != nil {
		t.Fatalf("blank token should open the bus, got %v", err)
	}
	v := ForToken(" secret ")
	if err := v.Validate("secret"); err != nil {
		t.Fatalf("trimmed token should match, got %v", err)
	}
	if err := v.Validate(""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("missing token should be rejected, got %v", err)
	}
}
