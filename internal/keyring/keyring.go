// Package keyring derives operator wallets and agent signer keys from one
// BIP-39 mnemonic.
package keyring

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"

	"github.com/angganurf/wunderland-sol/internal/securestore"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

const (
	hkdfInfoWallet = "wunderland/wallet/v1"
	hkdfInfoSigner = "wunderland/agent-signer/v1"
)

var (
	ErrInvalidMnemonic  = errors.New("invalid mnemonic")
	ErrMnemonicRequired = errors.New("mnemonic is required")
)

type Keyring struct {
	seed []byte
}

// NewMnemonic returns a fresh 24-word mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

func FromMnemonic(mnemonic, passphrase string) (*Keyring, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if mnemonic == "" {
		return nil, ErrMnemonicRequired
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	return &Keyring{seed: bip39.NewSeed(mnemonic, passphrase)}, nil
}

// Load decrypts a mnemonic saved with Save.
func Load(path, secret, passphrase string) (*Keyring, error) {
	raw, err := securestore.ReadDecryptedFile(path, secret)
	if err != nil {
		return nil, err
	}
	return FromMnemonic(string(raw), passphrase)
}

// Save encrypts mnemonic at rest under secret.
func Save(path, secret, mnemonic string) error {
	if _, err := FromMnemonic(mnemonic, ""); err != nil {
		return err
	}
	return securestore.WriteEncryptedFile(path, secret, []byte(strings.Join(strings.Fields(mnemonic), " ")))
}

// Wallet is the owner wallet at index. It pays fees and holds funds.
func (k *Keyring) Wallet(index uint32) (ed25519.PrivateKey, error) {
	return k.derive(hkdfInfoWallet, index)
}

// AgentSigner is the content signing key at index. It never holds funds and
// must differ from every wallet.
func (k *Keyring) AgentSigner(index uint32) (ed25519.PrivateKey, error) {
	return k.derive(hkdfInfoSigner, index)
}

func (k *Keyring) derive(info string, index uint32) (ed25519.PrivateKey, error) {
	seed, err := hkdfExpand(k.seed, fmt.Sprintf("%s/%d", info, index), ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// PublicKey returns the ledger key of priv.
func PublicKey(priv ed25519.PrivateKey) models.Key {
	return models.BytesToKey(priv.Public().(ed25519.PublicKey))
}

func hkdfExpand(seed []byte, info string, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, seed, nil, []byte(info))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
