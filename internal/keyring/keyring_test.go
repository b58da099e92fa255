package keyring

import (
	"crypto/ed25519"
	"errors"
	"path/filepath"
	"testing"

	"github.com/angganurf/wunderland-sol/internal/securestore"
	"github.com/angganurf/wunderland-sol/internal/testutil/fsperm"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestDerivationIsDeterministic(t *testing.T) {
	a, err := FromMnemonic(testMnemonic, "")
	if err != nil {
		t.Fatalf("from mnemonic: %v", err)
	}
	b, err := FromMnemonic("  "+testMnemonic+"\n", "")
	if err != nil {
		t.Fatalf("from mnemonic: %v", err)
	}
	wa, _ := a.Wallet(0)
	wb, _ := b.Wallet(0)
	if !wa.Equal(wb) {
		t.Fatal("expected same wallet for same mnemonic")
	}
}

func TestKeysAreSeparated(t *testing.T) {
	k, err := FromMnemonic(testMnemonic, "")
	if err != nil {
		t.Fatalf("from mnemonic: %v", err)
	}
	w0, _ := k.Wallet(0)
	w1, _ := k.Wallet(1)
	s0, _ := k.AgentSigner(0)
	if PublicKey(w0) == PublicKey(w1) || PublicKey(w0) == PublicKey(s0) {
		t.Fatal("expected distinct keys per purpose and index")
	}

	other, _ := FromMnemonic(testMnemonic, "passphrase")
	ow0, _ := other.Wallet(0)
	if PublicKey(w0) == PublicKey(ow0) {
		t.Fatal("expected passphrase to change derived keys")
	}
}

func TestSignaturesVerifyUnderPublicKey(t *testing.T) {
	k, _ := FromMnemonic(testMnemonic, "")
	s, _ := k.AgentSigner(3)
	msg := []byte("payload")
	pub := PublicKey(s)
	if !ed25519.Verify(ed25519.PublicKey(pub.Bytes()), msg, ed25519.Sign(s, msg)) {
		t.Fatal("signature did not verify")
	}
}

func TestFromMnemonicRejects(t *testing.T) {
	cases := []struct {
		name     string
		mnemonic string
		want     error
	}{
		{"empty", "   ", ErrMnemonicRequired},
		{"bad checksum", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon", ErrInvalidMnemonic},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := FromMnemonic(tc.mnemonic, ""); !errors.Is(err, tc.want) {
				t.Fatalf("unexpected error: got=%v want=%v", err, tc.want)
			}
		})
	}
}

func TestNewMnemonicIsValid(t *testing.T) {
	m, err := NewMnemonic()
	if err != nil {
		t.Fatalf("new mnemonic: %v", err)
	}
	if _, err := FromMnemonic(m, ""); err != nil {
		t.Fatalf("generated mnemonic rejected: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "seed.enc")
	if err := Save(path, "secret", testMnemonic); err != nil {
		t.Fatalf("save: %v", err)
	}
	fsperm.AssertPrivateDirPerm(t, filepath.Dir(path))
	fsperm.AssertPrivateFilePerm(t, path)
	k, err := Load(path, "secret", "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want, _ := FromMnemonic(testMnemonic, "")
	got, _ := k.Wallet(0)
	exp, _ := want.Wallet(0)
	if !got.Equal(exp) {
		t.Fatal("loaded keyring derives different wallet")
	}
	if _, err := Load(path, "wrong", ""); !errors.Is(err, securestore.ErrAuthFailed) {
		t.Fatalf("unexpected error: got=%v want=%v", err, securestore.ErrAuthFailed)
	}
}
