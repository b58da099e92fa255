package entries

import (
	"errors"
	"testing"

	"github.com/angganurf/wunderland-sol/internal/addressing"
	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/domains/enclave"
	"github.com/angganurf/wunderland-sol/internal/domains/registry"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/internal/testutil/ledgerfix"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

type world struct {
	f       *ledgerfix.Fixture
	author  ledgerfix.Agent
	voter   ledgerfix.Agent
	enclave models.Key
}

func newWorld(t *testing.T) *world {
	t.Helper()
	f := ledgerfix.New(t)
	w := &world{f: f, author: f.Agent(1), voter: f.Agent(2)}
	name := models.Hash{0xE1}
	sig := f.Sign(w.author, contracts.ActionCreateEnclave, enclave.CreatePayload(name, models.Hash{}))
	f.MustUpdate(func(tx *store.Tx) error {
		var err error
		w.enclave, err = enclave.Create(tx, f.Ctx, w.author.Key, sig, name, models.Hash{})
		return err
	})
	return w
}

func (w *world) post(t *testing.T, a ledgerfix.Agent, content byte) models.Key {
	t.Helper()
	var addr models.Key
	c, m := models.Hash{content}, models.Hash{content, 1}
	sig := w.f.Sign(a, contracts.ActionAnchorPost, PostPayload(w.enclave, c, m))
	w.f.MustUpdate(func(tx *store.Tx) error {
		var err error
		addr, err = AnchorPost(tx, w.f.Ctx, a.Key, sig, w.enclave, c, m)
		return err
	})
	return addr
}

func (w *world) vote(a ledgerfix.Agent, post models.Key, value int8) error {
	sig := w.f.Sign(a, contracts.ActionCastVote, VotePayload(post, value))
	return w.f.Update(func(tx *store.Tx) error {
		_, err := CastVote(tx, w.f.Ctx, a.Key, sig, post, value)
		return err
	})
}

func (w *world) entry(post models.Key) PostAnchor {
	var out PostAnchor
	w.f.View(func(tx *store.Tx) error {
		var err error
		out, err = store.Get[PostAnchor](tx, post)
		return err
	})
	return out
}

func (w *world) agent(key models.Key) registry.AgentIdentity {
	var out registry.AgentIdentity
	w.f.View(func(tx *store.Tx) error {
		var err error
		out, err = registry.LoadAgent(tx, key)
		return err
	})
	return out
}

func TestAnchorPost_IndexesIncreasePerAgent(t *testing.T) {
	w := newWorld(t)
	first := w.post(t, w.author, 1)
	second := w.post(t, w.author, 2)
	d := addressing.New(w.f.Ctx.Program)
	if first != d.Post(w.author.Key, 0) || second != d.Post(w.author.Key, 1) {
		t.Fatal("post addresses do not follow the agent entry index")
	}
	if got := w.entry(second); got.PostIndex != 1 || got.Kind != KindPost || got.Enclave != w.enclave {
		t.Fatalf("unexpected second entry: %+v", got)
	}
	if w.entry(second).CreatedSlot <= w.entry(first).CreatedSlot {
		t.Fatal("created slot must increase")
	}
	if got := w.agent(w.author.Key).TotalEntries; got != 2 {
		t.Fatalf("total entries: got=%d want=2", got)
	}
}

func TestAnchorPost_RequiresActiveEnclave(t *testing.T) {
	w := newWorld(t)
	c := models.Hash{1}
	missing := models.Key{0x99}
	sig := w.f.Sign(w.author, contracts.ActionAnchorPost, PostPayload(missing, c, c))
	err := w.f.Update(func(tx *store.Tx) error {
		_, err := AnchorPost(tx, w.f.Ctx, w.author.Key, sig, missing, c, c)
		return err
	})
	if !errors.Is(err, contracts.ErrEnclaveInactive) {
		t.Fatalf("expected ErrEnclaveInactive, got %v", err)
	}
}

func TestAnchorPost_PostCountOverflow(t *testing.T) {
	w := newWorld(t)
	w.f.MustUpdate(func(tx *store.Tx) error {
		rec, err := registry.LoadAgent(tx, w.author.Key)
		if err != nil {
			return err
		}
		rec.TotalEntries = ^uint32(0)
		return store.Put(tx, w.author.Key, rec)
	})
	c := models.Hash{1}
	sig := w.f.Sign(w.author, contracts.ActionAnchorPost, PostPayload(w.enclave, c, c))
	err := w.f.Update(func(tx *store.Tx) error {
		_, err := AnchorPost(tx, w.f.Ctx, w.author.Key, sig, w.enclave, c, c)
		return err
	})
	if !errors.Is(err, contracts.ErrPostCountOverflow) {
		t.Fatalf("expected ErrPostCountOverflow, got %v", err)
	}
}

func TestAnchorComment(t *testing.T) {
	w := newWorld(t)
	root := w.post(t, w.author, 1)
	c := models.Hash{2}
	comment := func(target models.Key) (models.Key, error) {
		sig := w.f.Sign(w.voter, contracts.ActionAnchorComment, CommentPayload(target, c, c))
		var addr models.Key
		err := w.f.Update(func(tx *store.Tx) error {
			var err error
			addr, err = AnchorComment(tx, w.f.Ctx, w.voter.Key, sig, target, c, c)
			return err
		})
		return addr, err
	}
	if _, err := comment(models.Key{0x42}); !errors.Is(err, contracts.ErrInvalidReplyTarget) {
		t.Fatalf("expected ErrInvalidReplyTarget, got %v", err)
	}
	if _, err := comment(models.Key{}); !errors.Is(err, contracts.ErrInvalidReplyTarget) {
		t.Fatalf("expected ErrInvalidReplyTarget for zero target, got %v", err)
	}
	addr, err := comment(root)
	if err != nil {
		t.Fatalf("comment failed: %v", err)
	}
	got := w.entry(addr)
	if got.Kind != KindComment || got.ReplyTo != root || got.Enclave != w.enclave || got.PostIndex != 0 {
		t.Fatalf("unexpected comment: %+v", got)
	}
	if n := w.entry(root).CommentCount; n != 1 {
		t.Fatalf("comment count: got=%d want=1", n)
	}
	if n := w.agent(w.voter.Key).TotalEntries; n != 1 {
		t.Fatalf("commenter entries: got=%d want=1", n)
	}
}

func TestAnchorCommentRejectsUnknownTargetKind(t *testing.T) {
	w := newWorld(t)
	root := w.post(t, w.author, 1)
	w.f.MustUpdate(func(tx *store.Tx) error {
		e, err := store.Get[PostAnchor](tx, root)
		if err != nil {
			return err
		}
		e.Kind = 7
		return store.Put(tx, root, e)
	})
	c := models.Hash{2}
	sig := w.f.Sign(w.voter, contracts.ActionAnchorComment, CommentPayload(root, c, c))
	err := w.f.Update(func(tx *store.Tx) error {
		_, err := AnchorComment(tx, w.f.Ctx, w.voter.Key, sig, root, c, c)
		return err
	})
	if !errors.Is(err, contracts.ErrInvalidEntryKind) {
		t.Fatalf("unexpected error: got=%v want=%v", err, contracts.ErrInvalidEntryKind)
	}
}

func TestCastVote_UpdatesCountersAndReputation(t *testing.T) {
	w := newWorld(t)
	post := w.post(t, w.author, 1)
	if err := w.vote(w.voter, post, 1); err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	third := w.f.Agent(3)
	if err := w.vote(third, post, -1); err != nil {
		t.Fatalf("downvote failed: %v", err)
	}
	got := w.entry(post)
	if got.Upvotes != 1 || got.Downvotes != 1 {
		t.Fatalf("votes: up=%d down=%d", got.Upvotes, got.Downvotes)
	}
	if score := w.agent(w.author.Key).ReputationScore; score != 0 {
		t.Fatalf("reputation: got=%d want=0", score)
	}
	fourth := w.f.Agent(4)
	if err := w.vote(fourth, post, -1); err != nil {
		t.Fatalf("downvote failed: %v", err)
	}
	if score := w.agent(w.author.Key).ReputationScore; score != -1 {
		t.Fatalf("reputation: got=%d want=-1", score)
	}
}

func TestCastVote_RejectsDuplicateSelfAndBadValue(t *testing.T) {
	w := newWorld(t)
	post := w.post(t, w.author, 1)
	if err := w.vote(w.voter, post, 1); err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	before := w.entry(post)
	beforeScore := w.agent(w.author.Key).ReputationScore

	cases := []struct {
		name  string
		agent ledgerfix.Agent
		value int8
		want  error
	}{
		{"duplicate same value", w.voter, 1, contracts.ErrAccountAlreadyInUse},
		{"duplicate flipped", w.voter, -1, contracts.ErrAccountAlreadyInUse},
		{"self vote", w.author, 1, contracts.ErrSelfVote},
		{"zero value", w.voter, 0, contracts.ErrInvalidVoteValue},
		{"two", w.voter, 2, contracts.ErrInvalidVoteValue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := w.vote(tc.agent, post, tc.value); !errors.Is(err, tc.want) {
				t.Fatalf("got=%v want=%v", err, tc.want)
			}
			after := w.entry(post)
			if after.Upvotes != before.Upvotes || after.Downvotes != before.Downvotes {
				t.Fatalf("counters changed: before=%+v after=%+v", before, after)
			}
			if score := w.agent(w.author.Key).ReputationScore; score != beforeScore {
				t.Fatalf("reputation changed: got=%d want=%d", score, beforeScore)
			}
		})
	}
}

func TestCastVote_Overflow(t *testing.T) {
	w := newWorld(t)
	post := w.post(t, w.author, 1)
	w.f.MustUpdate(func(tx *store.Tx) error {
		entry, err := store.Get[PostAnchor](tx, post)
		if err != nil {
			return err
		}
		entry.Upvotes = ^uint32(0)
		return store.Put(tx, post, entry)
	})
	if err := w.vote(w.voter, post, 1); !errors.Is(err, contracts.ErrVoteCountOverflow) {
		t.Fatalf("expected ErrVoteCountOverflow, got %v", err)
	}
	w.f.MustUpdate(func(tx *store.Tx) error {
		rec, err := registry.LoadAgent(tx, w.author.Key)
		if err != nil {
			return err
		}
		rec.ReputationScore = -1 << 63
		return store.Put(tx, w.author.Key, rec)
	})
	if err := w.vote(w.voter, post, -1); !errors.Is(err, contracts.ErrReputationOverflow) {
		t.Fatalf("expected ErrReputationOverflow, got %v", err)
	}
	// Failed votes leave no vote record behind.
	w.f.View(func(tx *store.Tx) error {
		if ok, _ := tx.Exists(addressing.New(w.f.Ctx.Program).Vote(post, w.voter.Key)); ok {
			t.Fatal("vote record persisted after failure")
		}
		return nil
	})
}
