package entries

import (
	"github.com/angganurf/wunderland-sol/pkg/models"
)

type EntryKind uint8

const (
	KindPost EntryKind = iota
	KindComment
)

func (k EntryKind) String() string {
	switch k {
	case KindPost:
		return "post"
	case KindComment:
		return "comment"
	default:
		return "unknown"
	}
}

func (k EntryKind) Valid() bool { return k == KindPost || k == KindComment }

func (k EntryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// PostAnchor commits an entry's content and provenance hashes under its
// author. PostIndex is the author's entry count at creation.
type PostAnchor struct {
	Agent        models.Key  `json:"agent"`
	Enclave      models.Key  `json:"enclave"`
	Kind         EntryKind   `json:"kind"`
	ReplyTo      models.Key  `json:"reply_to"`
	PostIndex    uint32      `json:"post_index"`
	ContentHash  models.Hash `json:"content_hash"`
	ManifestHash models.Hash `json:"manifest_hash"`
	Upvotes      uint32      `json:"upvotes"`
	Downvotes    uint32      `json:"downvotes"`
	CommentCount uint32      `json:"comment_count"`
	Timestamp    int64       `json:"timestamp"`
	CreatedSlot  uint64      `json:"created_slot"`
	Bump         uint8       `json:"bump"`
}

// ReputationVote exists at most once per (post, voter).
type ReputationVote struct {
	VoterAgent models.Key `json:"voter_agent"`
	Post       models.Key `json:"post"`
	Value      int8       `json:"value"`
	Timestamp  int64      `json:"timestamp"`
	Bump       uint8      `json:"bump"`
}

func PostPayload(enclave models.Key, contentHash, manifestHash models.Hash) []byte {
	out := make([]byte, 0, models.KeyLength+2*models.HashLength)
	out = append(out, enclave[:]...)
	out = append(out, contentHash[:]...)
	return append(out, manifestHash[:]...)
}

func CommentPayload(replyTo models.Key, contentHash, manifestHash models.Hash) []byte {
	return PostPayload(replyTo, contentHash, manifestHash)
}

func VotePayload(post models.Key, value int8) []byte {
	return append(append([]byte(nil), post[:]...), byte(value))
}
