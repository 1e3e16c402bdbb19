package securebox_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/julo/lendcore/internal/securebox"
)

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := securebox.New("passphrase")
	if err != nil {
		t.Fatalf("new box: %v", err)
	}
	sealed, err := box.Seal([]byte("private key material"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("private key material")) {
		t.Fatalf("sealed output leaks plaintext")
	}
	opened, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(opened) != "private key material" {
		t.Fatalf("unexpected plaintext %q", opened)
	}
}

func TestOpenRejectsTamperingAndWrongKey(t *testing.T) {
	box, _ := securebox.New("passphrase")
	other, _ := securebox.New("other")

	sealed, _ := box.Seal([]byte("secret"))
	if _, err := other.Open(sealed); err == nil {
		t.Fatalf("expected failure with wrong key")
	}
	sealed[len(sealed)-1] ^= 0xff
	if _, err := box.Open(sealed); err == nil {
		t.Fatalf("expected failure on tampered ciphertext")
	}
	if _, err := box.Open([]byte{1, 2}); !errors.Is(err, securebox.ErrCiphertextTooShort) {
		t.Fatalf("expected too short error, got %v", err)
	}
}

func TestNewRejectsEmptyPassphrase(t *testing.T) {
	if _, err := securebox.New(""); err == nil {
		t.Fatalf("expected error for empty passphrase")
	}
}
