package encryption

import (
	"testing"
)

func TestNewEncryptor(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{
			name:    "valid 32-byte key",
			key:     "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
			wantErr: false,
		},
		{
			name:    "invalid key - too short",
			key:     "0123456789abcdef",
			wantErr: true,
		},
		{
			name:    "invalid key - not hex",
			key:     "not-a-hex-string-not-a-hex-string-not-a-hex-string-not-a-hex-str",
			wantErr: true,
		},
		{
			name:    "empty key",
			key:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncryptor(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewEncryptor() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncryptDecrypt(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	enc, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("Failed to create encryptor: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{
			name:      "details payload",
			plaintext: `{"phone_number":"415-555-0101","financials":{"total_rents":"32,000"}}`,
		},
		{
			name:      "email address",
			plaintext: "seller@example.com",
		},
		{
			name:      "unicode text",
			plaintext: "Café Ñoño 🌉",
		},
		{
			name:      "empty payload",
			plaintext: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := enc.Encrypt([]byte(tt.plaintext))
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}

			if tt.plaintext != "" && ciphertext == tt.plaintext {
				t.Error("Ciphertext should be different from plaintext")
			}

			decrypted, err := enc.Decrypt(ciphertext)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}

			if string(decrypted) != tt.plaintext {
				t.Errorf("Decrypt() = %v, want %v", string(decrypted), tt.plaintext)
			}
		})
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	enc, _ := NewEncryptor(key)

	tests := []struct {
		name      string
		encrypted string
	}{
		{
			name:      "not base64",
			encrypted: "!!not-base64!!",
		},
		{
			name:      "too short for a nonce",
			encrypted: "YQ==",
		},
		{
			name:      "valid base64, garbage ciphertext",
			encrypted: "bm90LXJlYWwtY2lwaGVydGV4dC1hdC1hbGwtanVzdC1ieXRlcw==",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := enc.Decrypt(tt.encrypted); err == nil {
				t.Error("Decrypt() should fail for tampered input")
			}
		})
	}
}

func TestDecryptWrongKey(t *testing.T) {
	enc1, _ := NewEncryptor("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	enc2, _ := NewEncryptor("fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210")

	ciphertext, err := enc1.Encrypt([]byte("sensitive payload"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if _, err := enc2.Decrypt(ciphertext); err == nil {
		t.Error("Decrypt() should fail with a different key")
	}
}
