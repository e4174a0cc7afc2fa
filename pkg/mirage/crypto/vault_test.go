package crypto

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	pairs := []struct {
		credential string
		passphrase string
	}{
		{"sk-test-0123456789abcdef", "correct horse battery staple"},
		{"x", "y"},
		{"credential with spaces and unicode: héllo", "päss"},
	}

	for _, pair := range pairs {
		sealed, err := Seal(pair.credential, pair.passphrase)
		if err != nil {
			t.Fatalf("Seal(%q) failed: %v", pair.credential, err)
		}
		if sealed == pair.credential {
			t.Fatalf("sealed blob equals plaintext")
		}

		opened, err := Open(sealed, pair.passphrase)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if opened != pair.credential {
			t.Fatalf("round trip mismatch: got %q, want %q", opened, pair.credential)
		}
	}
}

func TestSealProducesDistinctBlobs(t *testing.T) {
	// Random salt and nonce per seal: the same inputs must never produce
	// the same blob.
	a, err := Seal("credential", "passphrase")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	b, err := Seal("credential", "passphrase")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if a == b {
		t.Fatal("two seals of the same credential produced identical blobs")
	}
}

func TestOpenWrongPassphrase(t *testing.T) {
	sealed, err := Seal("the-credential", "right-passphrase")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	opened, err := Open(sealed, "wrong-passphrase")
	if err == nil {
		t.Fatal("Open with wrong passphrase succeeded")
	}
	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("expected CredentialError, got %T: %v", err, err)
	}
	if opened != "" {
		t.Fatalf("Open returned credential %q on failure", opened)
	}
}

func TestOpenTamperedBlob(t *testing.T) {
	sealed, err := Seal("the-credential", "passphrase")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Flip a bit in the ciphertext; GCM must reject the payload.
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := Open(tampered, "passphrase"); err == nil {
		t.Fatal("Open accepted a tampered blob")
	}
}

func TestOpenGarbageInput(t *testing.T) {
	cases := []string{"not base64 at all!!!", base64.StdEncoding.EncodeToString([]byte("short"))}
	for _, sealed := range cases {
		if _, err := Open(sealed, "passphrase"); err == nil {
			t.Fatalf("Open(%q) succeeded on garbage input", sealed)
		}
	}
}

func TestMissingInputs(t *testing.T) {
	if _, err := Seal("", "passphrase"); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("Seal with empty credential: got %v, want ErrMissingCredential", err)
	}
	if _, err := Seal("credential", ""); !errors.Is(err, ErrMissingPassphrase) {
		t.Fatalf("Seal with empty passphrase: got %v, want ErrMissingPassphrase", err)
	}
	if _, err := Open("", "passphrase"); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("Open with empty blob: got %v, want ErrMissingCredential", err)
	}
	if _, err := Open("blob", ""); !errors.Is(err, ErrMissingPassphrase) {
		t.Fatalf("Open with empty passphrase: got %v, want ErrMissingPassphrase", err)
	}
}

func TestDeriveKeyDependsOnSalt(t *testing.T) {
	a := DeriveKey("passphrase", []byte("salt-aaaaaaaaaaa"))
	b := DeriveKey("passphrase", []byte("salt-bbbbbbbbbbb"))
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("derived keys have wrong length: %d, %d", len(a), len(b))
	}
	if string(a) == string(b) {
		t.Fatal("different salts derived the same key")
	}
}
