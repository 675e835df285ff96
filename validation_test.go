package sqlitesec

import (
	"errors"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{"nil key", nil, true},
		{"empty key", []byte{}, true},
		{"AES-128 sized key", make([]byte, 16), true},
		{"valid key", make([]byte, KeySize), false},
		{"too long", make([]byte, 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key, KeySize)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !IsValidationError(err) {
					t.Errorf("ValidateKey() should return ValidationError, got %T", err)
				}
				if !errors.Is(err, ErrInvalidKey) {
					t.Errorf("ValidateKey() should wrap ErrInvalidKey")
				}
			}
		})
	}
}

func TestValidateSaltAndIV(t *testing.T) {
	for _, size := range []int{0, 1, 12, 15, 17, 32} {
		if err := ValidateSalt(make([]byte, size)); !IsValidationError(err) {
			t.Errorf("ValidateSalt(%d bytes) = %v, want ValidationError", size, err)
		}
		if err := ValidateIV(make([]byte, size)); !IsValidationError(err) {
			t.Errorf("ValidateIV(%d bytes) = %v, want ValidationError", size, err)
		}
	}

	if err := ValidateSalt(make([]byte, SaltSize)); err != nil {
		t.Errorf("ValidateSalt(valid) = %v", err)
	}
	if err := ValidateIV(make([]byte, IVSize)); err != nil {
		t.Errorf("ValidateIV(valid) = %v", err)
	}
}

func TestValidateFilePath(t *testing.T) {
	if err := ValidateFilePath(""); !IsValidationError(err) {
		t.Errorf("ValidateFilePath(\"\") = %v, want ValidationError", err)
	}
	if err := ValidateFilePath("app.db"); err != nil {
		t.Errorf("ValidateFilePath(\"app.db\") = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	var nilConfig *Config
	if err := nilConfig.Validate(); !errors.Is(err, ErrNilConfig) {
		t.Errorf("nil config: got %v, want ErrNilConfig", err)
	}
	if err := (&Config{}).Validate(); !errors.Is(err, ErrNilKeyProvider) {
		t.Errorf("missing key provider: got %v, want ErrNilKeyProvider", err)
	}
	if err := (&Config{KeyProvider: fastKeys("x")}).Validate(); err != nil {
		t.Errorf("valid config: got %v", err)
	}

	cfg := &Config{KeyProvider: fastKeys("x")}
	if cfg.fileMode() != DefaultFileMode {
		t.Errorf("default file mode = %v, want %v", cfg.fileMode(), DefaultFileMode)
	}
	if cfg.logger() == nil {
		t.Error("default logger is nil")
	}
}
