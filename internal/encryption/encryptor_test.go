package encryption

import (
	"bytes"
	"testing"

	"hist-go/internal/config"
	"hist-go/internal/hist"
)

func roundTrip(t *testing.T, e hist.Encryptor, passphrase string, input []byte) []byte {
	t.Helper()
	var sealed bytes.Buffer
	if err := e.Encrypt(bytes.NewReader(input), &sealed); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	dc, err := e.Unlock(passphrase)
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	var opened bytes.Buffer
	if err := dc.Decrypt(bytes.NewReader(sealed.Bytes()), &opened); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(opened.Bytes(), input) {
		t.Errorf("round trip = %q, want %q", opened.Bytes(), input)
	}
	return sealed.Bytes()
}

func TestNoneEncryptor(t *testing.T) {
	t.Parallel()
	var e NoneEncryptor

	if !e.IsConfigured() {
		t.Error("IsConfigured() = false, want true")
	}
	if e.NeedsPassphrase() {
		t.Error("NeedsPassphrase() = true, want false")
	}

	input := []byte("plain text\n")
	if sealed := roundTrip(t, e, "", input); !bytes.Equal(sealed, input) {
		t.Errorf("Encrypt() = %q, want plaintext %q", sealed, input)
	}
}

func TestTestEncryptor(t *testing.T) {
	t.Parallel()

	t.Run("prefixes header", func(t *testing.T) {
		t.Parallel()
		input := []byte("hello")
		sealed := roundTrip(t, NewTestEncryptor(), "", input)
		if !bytes.HasPrefix(sealed, testHeader) {
			t.Errorf("Encrypt() = %q, want prefix %q", sealed, testHeader)
		}
		if len(sealed) != len(testHeader)+len(input) {
			t.Errorf("len(Encrypt()) = %d, want %d", len(sealed), len(testHeader)+len(input))
		}
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		roundTrip(t, NewTestEncryptor(), "", nil)
	})

	t.Run("passphrase after setup", func(t *testing.T) {
		t.Parallel()
		e := NewTestEncryptor()
		if e.NeedsPassphrase() {
			t.Error("NeedsPassphrase() before Setup = true, want false")
		}
		if err := e.Setup("secret"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if !e.NeedsPassphrase() {
			t.Error("NeedsPassphrase() after Setup = false, want true")
		}
		if _, err := e.Unlock("wrong"); err == nil {
			t.Error("Unlock(wrong) error = nil, want error")
		}
		roundTrip(t, e, "secret", []byte("data"))
	})

	t.Run("rejects missing header", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		err := (&TestDecryptionContext{}).Decrypt(bytes.NewReader([]byte("not sealed")), &out)
		if err == nil {
			t.Error("Decrypt() of unsealed data error = nil, want error")
		}
	})

	t.Run("rejects short input", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		if err := (&TestDecryptionContext{}).Decrypt(bytes.NewReader([]byte("HIS")), &out); err == nil {
			t.Error("Decrypt() of short data error = nil, want error")
		}
	})
}

func TestNewEncryptorFromConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      config.EncryptionConfig
		wantType string
		wantErr  bool
	}{
		{name: "empty is none", cfg: config.EncryptionConfig{}, wantType: "none"},
		{name: "none", cfg: config.EncryptionConfig{Type: "none"}, wantType: "none"},
		{name: "age", cfg: config.EncryptionConfig{Type: "age", PublicKeyPath: "a.pub", PrivateKeyPath: "a.key"}, wantType: "age"},
		{name: "test", cfg: config.EncryptionConfig{Type: "test"}, wantType: "test"},
		{name: "unknown", cfg: config.EncryptionConfig{Type: "rot13"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, err := NewEncryptorFromConfig(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewEncryptorFromConfig() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEncryptorFromConfig() error = %v", err)
			}

			var got string
			switch e.(type) {
			case NoneEncryptor:
				got = "none"
			case *AgeEncryptor:
				got = "age"
			case *TestEncryptor:
				got = "test"
			}
			if got != tt.wantType {
				t.Errorf("NewEncryptorFromConfig() type = %T, want %s", e, tt.wantType)
			}
		})
	}
}
