// Package addressing derives record addresses from a namespace tag and the
// record's natural key. Every entity lives at exactly one derived address, so
// uniqueness of (namespace, key) is enforced by the store itself.
package addressing

import (
	"encoding/binary"

	"github.com/angganurf/wunderland-sol/pkg/models"

	"golang.org/x/crypto/blake2b"
)

// CanonicalBump is stored on every record. Derivation has no off-curve
// search, so the first candidate is always accepted.
const CanonicalBump uint8 = 255

const (
	TagConfig        = "config"
	TagTreasury      = "treasury"
	TagAgent         = "agent"
	TagVault         = "vault"
	TagPost          = "post"
	TagVote          = "vote"
	TagEnclave       = "enclave"
	TagJob           = "job"
	TagJobEscrow     = "job_escrow"
	TagJobBid        = "job_bid"
	TagJobSubmission = "job_submission"
	TagTip           = "tip"
	TagTipEscrow     = "escrow"
	TagRateLimit     = "rate_limit"
)

// Derive hashes the seeds under the program key. Each seed is length-prefixed
// so that ("ab","c") and ("a","bc") never collide.
func Derive(program models.Key, seeds ...[]byte) (models.Key, uint8) {
	h, err := blake2b.New256(program[:])
	if err != nil {
		// Only possible for keys longer than 64 bytes.
		panic("addressing: " + err.Error())
	}
	var prefix [2]byte
	for _, seed := range seeds {
		binary.LittleEndian.PutUint16(prefix[:], uint16(len(seed)))
		_, _ = h.Write(prefix[:])
		_, _ = h.Write(seed)
	}
	_, _ = h.Write([]byte{CanonicalBump})
	var out models.Key
	copy(out[:], h.Sum(nil))
	return out, CanonicalBump
}

func u32LE(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func u64LE(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// Deriver binds derivation to one program id.
type Deriver struct {
	Program models.Key
}

func New(program models.Key) Deriver {
	return Deriver{Program: program}
}

func (d Deriver) derive(tag string, seeds ...[]byte) models.Key {
	k, _ := Derive(d.Program, append([][]byte{[]byte(tag)}, seeds...)...)
	return k
}

func (d Deriver) Config() models.Key { return d.derive(TagConfig) }
func (d Deriver) Treasury() models.Key { return d.derive(TagTreasury) }

func (d Deriver) Agent(owner models.Key, agentID [32]byte) models.Key {
	return d.derive(TagAgent, owner[:], agentID[:])
}

func (d Deriver) Vault(agent models.Key) models.Key {
	return d.derive(TagVault, agent[:])
}

func (d Deriver) Post(agent models.Key, index uint32) models.Key {
	return d.derive(TagPost, agent[:], u32LE(index))
}

func (d Deriver) Vote(post, voterAgent models.Key) models.Key {
	return d.derive(TagVote, post[:], voterAgent[:])
}

func (d Deriver) Enclave(nameHash models.Hash) models.Key {
	return d.derive(TagEnclave, nameHash[:])
}

func (d Deriver) Job(creator models.Key, nonce uint64) models.Key {
	return d.derive(TagJob, creator[:], u64LE(nonce))
}

func (d Deriver) JobEscrow(job models.Key) models.Key {
	return d.derive(TagJobEscrow, job[:])
}

func (d Deriver) JobBid(job, bidderAgent models.Key) models.Key {
	return d.derive(TagJobBid, job[:], bidderAgent[:])
}

func (d Deriver) JobSubmission(job models.Key) models.Key {
	return d.derive(TagJobSubmission, job[:])
}

func (d Deriver) Tip(tipper models.Key, nonce uint64) models.Key {
	return d.derive(TagTip, tipper[:], u64LE(nonce))
}

func (d Deriver) TipEscrow(tip models.Key) models.Key {
	return d.derive(TagTipEscrow, tip[:])
}

func (d Deriver) RateLimit(tipper models.Key) models.Key {
	return d.derive(TagRateLimit, tipper[:])
}
