package rpc

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"

	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

// WalletSignDomain prefixes every wallet-signed payload. It differs from the
// agent domain so a proof for one can never be replayed as the other.
const WalletSignDomain = "WUNDERLAND_SOL_WALLET_V1"

// authProof carries the ed25519 proof for signed methods. Message defaults to
// the canonical payload of the method being called.
type authProof struct {
	Signer    models.Key `json:"signer"`
	Signature string     `json:"signature"`
	Message   string     `json:"message,omitempty"`
}

// verify turns the proof into the AgentSignature the ledger checks. Without
// requireSignatures an unsigned request is trusted for its signer.
func (s *Server) verify(auth authProof, agent models.Key, action contracts.Action, payload []byte) (contracts.AgentSignature, error) {
	expected := contracts.AgentMessage(s.service.Program(), agent, action, payload)
	sig := contracts.AgentSignature{Signer: auth.Signer, Message: expected}
	if auth.Message != "" {
		msg, err := base64.StdEncoding.DecodeString(auth.Message)
		if err != nil {
			return sig, errInvalidParams
		}
		sig.Message = msg
	}
	if auth.Signature == "" {
		sig.Verified = !s.requireSignatures && !auth.Signer.IsZero()
		return sig, nil
	}
	raw, err := decodeSignature(auth.Signature)
	if err != nil {
		return sig, err
	}
	sig.Verified = ed25519.Verify(ed25519.PublicKey(auth.Signer.Bytes()), sig.Message, raw)
	return sig, nil
}

// verifyWallet checks that wallet itself signed the call. The wallet key is
// the ed25519 public key, so Signer may be omitted. Unsigned calls pass only
// when signatures are optional.
func (s *Server) verifyWallet(auth authProof, method string, wallet models.Key, payload []byte) error {
	if auth.Signature == "" {
		if s.requireSignatures {
			return contracts.ErrMissingEd25519Instruction
		}
		return nil
	}
	if !auth.Signer.IsZero() && auth.Signer != wallet {
		return contracts.ErrSignaturePublicKeyMismatch
	}
	raw, err := decodeSignature(auth.Signature)
	if err != nil {
		return err
	}
	expected := WalletMessage(s.service.Program(), wallet, method, payload)
	if auth.Message != "" {
		msg, err := base64.StdEncoding.DecodeString(auth.Message)
		if err != nil {
			return errInvalidParams
		}
		if !bytes.Equal(msg, expected) {
			return contracts.ErrSignatureMessageMismatch
		}
	}
	if !ed25519.Verify(ed25519.PublicKey(wallet.Bytes()), expected, raw) {
		return contracts.ErrInvalidEd25519Instruction
	}
	return nil
}

func decodeSignature(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) != ed25519.SignatureSize {
		return nil, errInvalidParams
	}
	return raw, nil
}

// WalletMessage builds the canonical payload a wallet signs for method:
// domain || len(method) || method || program || wallet || len(payload) || payload.
func WalletMessage(program, wallet models.Key, method string, payload []byte) []byte {
	out := make([]byte, 0, len(WalletSignDomain)+1+len(method)+2*models.KeyLength+4+len(payload))
	out = append(out, WalletSignDomain...)
	out = append(out, byte(len(method)))
	out = append(out, method...)
	out = append(out, program[:]...)
	out = append(out, wallet[:]...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	return append(out, payload...)
}

// SignAgentMessage signs the canonical payload with the agent signer key.
func SignAgentMessage(key ed25519.PrivateKey, program, agent models.Key, action contracts.Action, payload []byte) string {
	msg := contracts.AgentMessage(program, agent, action, payload)
	return base64.StdEncoding.EncodeToString(ed25519.Sign(key, msg))
}

// SignWalletMessage signs the canonical wallet payload of method.
func SignWalletMessage(key ed25519.PrivateKey, program, wallet models.Key, method string, payload []byte) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(key, WalletMessage(program, wallet, method, payload)))
}
