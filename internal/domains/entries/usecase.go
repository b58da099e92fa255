package entries

import (
	"math"

	"github.com/angganurf/wunderland-sol/internal/addressing"
	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/domains/enclave"
	"github.com/angganurf/wunderland-sol/internal/domains/registry"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

// AnchorPost records a root entry of agent inside an active enclave.
func AnchorPost(tx *store.Tx, tctx contracts.TxContext, agent models.Key, sig contracts.AgentSignature, enclaveAddr models.Key, contentHash, manifestHash models.Hash) (models.Key, error) {
	author, err := registry.Authorize(tx, tctx, agent, sig, contracts.ActionAnchorPost, PostPayload(enclaveAddr, contentHash, manifestHash))
	if err != nil {
		return models.Key{}, err
	}
	if _, err := enclave.RequireActive(tx, enclaveAddr, contracts.ErrEnclaveInactive); err != nil {
		return models.Key{}, err
	}
	return anchor(tx, tctx, agent, author, PostAnchor{
		Enclave:      enclaveAddr,
		Kind:         KindPost,
		ContentHash:  contentHash,
		ManifestHash: manifestHash,
	})
}

// AnchorComment records a reply to an existing entry. The comment lives in
// the target's enclave.
func AnchorComment(tx *store.Tx, tctx contracts.TxContext, agent models.Key, sig contracts.AgentSignature, replyTo models.Key, contentHash, manifestHash models.Hash) (models.Key, error) {
	author, err := registry.Authorize(tx, tctx, agent, sig, contracts.ActionAnchorComment, CommentPayload(replyTo, contentHash, manifestHash))
	if err != nil {
		return models.Key{}, err
	}
	if replyTo.IsZero() {
		return models.Key{}, contracts.ErrInvalidReplyTarget
	}
	target, ok, err := store.Lookup[PostAnchor](tx, replyTo)
	if err != nil {
		return models.Key{}, err
	}
	if !ok {
		return models.Key{}, contracts.ErrInvalidReplyTarget
	}
	if !target.Kind.Valid() {
		return models.Key{}, contracts.ErrInvalidEntryKind
	}
	if _, err := enclave.RequireActive(tx, target.Enclave, contracts.ErrEnclaveInactive); err != nil {
		return models.Key{}, err
	}
	count, ok := checkedInc(target.CommentCount)
	if !ok {
		return models.Key{}, contracts.ErrArithmeticOverflow
	}
	target.CommentCount = count
	if err := store.Put(tx, replyTo, target); err != nil {
		return models.Key{}, err
	}
	return anchor(tx, tctx, agent, author, PostAnchor{
		Enclave:      target.Enclave,
		Kind:         KindComment,
		ReplyTo:      replyTo,
		ContentHash:  contentHash,
		ManifestHash: manifestHash,
	})
}

func anchor(tx *store.Tx, tctx contracts.TxContext, agent models.Key, author registry.AgentIdentity, entry PostAnchor) (models.Key, error) {
	next, ok := checkedInc(author.TotalEntries)
	if !ok {
		return models.Key{}, contracts.ErrPostCountOverflow
	}
	entry.Agent = agent
	entry.PostIndex = author.TotalEntries
	entry.Timestamp = tctx.Now
	entry.CreatedSlot = tx.Slot()
	entry.Bump = addressing.CanonicalBump

	addr := addressing.New(tctx.Program).Post(agent, entry.PostIndex)
	if err := store.Create(tx, addr, entry); err != nil {
		return models.Key{}, err
	}
	author.TotalEntries = next
	author.UpdatedAt = tctx.Now
	if err := store.Put(tx, agent, author); err != nil {
		return models.Key{}, err
	}
	return addr, nil
}

// CastVote records voter's +1 or -1 on post and applies it to the post
// counters and the author's reputation. A second vote on the same post
// collides on the vote address.
func CastVote(tx *store.Tx, tctx contracts.TxContext, voter models.Key, sig contracts.AgentSignature, post models.Key, value int8) (models.Key, error) {
	if value != 1 && value != -1 {
		return models.Key{}, contracts.ErrInvalidVoteValue
	}
	if _, err := registry.Authorize(tx, tctx, voter, sig, contracts.ActionCastVote, VotePayload(post, value)); err != nil {
		return models.Key{}, err
	}
	entry, err := store.Get[PostAnchor](tx, post)
	if err != nil {
		return models.Key{}, err
	}
	if entry.Agent == voter {
		return models.Key{}, contracts.ErrSelfVote
	}

	addr := addressing.New(tctx.Program).Vote(post, voter)
	vote := ReputationVote{
		VoterAgent: voter,
		Post:       post,
		Value:      value,
		Timestamp:  tctx.Now,
		Bump:       addressing.CanonicalBump,
	}
	if err := store.Create(tx, addr, vote); err != nil {
		return models.Key{}, err
	}

	var ok bool
	if value > 0 {
		entry.Upvotes, ok = checkedInc(entry.Upvotes)
	} else {
		entry.Downvotes, ok = checkedInc(entry.Downvotes)
	}
	if !ok {
		return models.Key{}, contracts.ErrVoteCountOverflow
	}
	if err := store.Put(tx, post, entry); err != nil {
		return models.Key{}, err
	}

	author, err := registry.LoadAgent(tx, entry.Agent)
	if err != nil {
		return models.Key{}, err
	}
	score, ok := addReputation(author.ReputationScore, value)
	if !ok {
		return models.Key{}, contracts.ErrReputationOverflow
	}
	author.ReputationScore = score
	author.UpdatedAt = tctx.Now
	if err := store.Put(tx, entry.Agent, author); err != nil {
		return models.Key{}, err
	}
	return addr, nil
}

func checkedInc(v uint32) (uint32, bool) {
	if v == ^uint32(0) {
		return v, false
	}
	return v + 1, true
}

func addReputation(score int64, delta int8) (int64, bool) {
	if delta > 0 && score > math.MaxInt64-int64(delta) {
		return score, false
	}
	if delta < 0 && score < math.MinInt64-int64(delta) {
		return score, false
	}
	return score + int64(delta), true
}
