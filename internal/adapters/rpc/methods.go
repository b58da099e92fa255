package rpc

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/domains/enclave"
	"github.com/angganurf/wunderland-sol/internal/domains/entries"
	"github.com/angganurf/wunderland-sol/internal/domains/jobs"
	"github.com/angganurf/wunderland-sol/internal/domains/registry"
	"github.com/angganurf/wunderland-sol/internal/domains/tips"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

type handlerFunc func(ctx context.Context, raw json.RawMessage) (any, *rpcError)

// signedTarget is what an agent signature has to cover for one call.
type signedTarget struct {
	agent   models.Key
	action  contracts.Action
	payload []byte
}

type signedParams interface {
	target() signedTarget
	proof() authProof
}

// walletTarget names the wallet that has to sign a call and the fields its
// signature covers.
type walletTarget struct {
	wallet  models.Key
	payload []byte
}

type walletParams interface {
	signedWallet() walletTarget
	proof() authProof
}

type signedBy struct {
	Auth authProof `json:"auth"`
}

func (b signedBy) proof() authProof { return b.Auth }

// call decodes T from the request params and maps failures to RPC errors.
func call[T any](fn func(context.Context, T) (any, error)) handlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, *rpcError) {
		params, err := decodeParams[T](raw)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		out, err := fn(ctx, params)
		if err != nil {
			if errors.Is(err, errInvalidParams) {
				return nil, rpcInvalidParams()
			}
			var limited rateLimitedError
			if errors.As(err, &limited) {
				return nil, rpcRateLimited(limited)
			}
			return nil, rpcServiceError(err)
		}
		return out, nil
	}
}

func noParams(fn func(context.Context) (any, error)) handlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, *rpcError) {
		switch strings.TrimSpace(string(raw)) {
		case "", "null", "[]", "{}":
		default:
			return nil, rpcInvalidParams()
		}
		out, err := fn(ctx)
		if err != nil {
			return nil, rpcServiceError(err)
		}
		return out, nil
	}
}

func signedCall[T signedParams](s *Server, fn func(context.Context, T, contracts.AgentSignature) (any, error)) handlerFunc {
	return call(func(ctx context.Context, p T) (any, error) {
		t := p.target()
		sig, err := s.verify(p.proof(), t.agent, t.action, t.payload)
		if err != nil {
			return nil, err
		}
		return fn(ctx, p, sig)
	})
}

// walletCall verifies that the wallet principal of T signed method and charges
// the call to that wallet's rate limit bucket.
func walletCall[T walletParams](s *Server, method string, fn func(context.Context, T) (any, error)) handlerFunc {
	return call(func(ctx context.Context, p T) (any, error) {
		t := p.signedWallet()
		if err := s.verifyWallet(p.proof(), method, t.wallet, t.payload); err != nil {
			return nil, err
		}
		if err := s.limitPrincipal(t.wallet); err != nil {
			return nil, err
		}
		return fn(ctx, p)
	})
}

func walletMessage[T walletParams](raw json.RawMessage) (walletTarget, error) {
	p, err := decodeParams[T](raw)
	if err != nil {
		return walletTarget{}, err
	}
	return p.signedWallet(), nil
}

// walletPayload concatenates the fixed-width encodings of the signed fields.
func walletPayload(fields ...any) []byte {
	var out []byte
	for _, f := range fields {
		switch v := f.(type) {
		case models.Key:
			out = append(out, v[:]...)
		case models.Hash:
			out = append(out, v[:]...)
		case uint64:
			out = binary.LittleEndian.AppendUint64(out, v)
		case uint8:
			out = append(out, v)
		case string:
			out = binary.LittleEndian.AppendUint32(out, uint32(len(v)))
			out = append(out, v...)
		case registry.Traits:
			for _, t := range v {
				out = binary.LittleEndian.AppendUint16(out, t)
			}
		default:
			panic(fmt.Sprintf("rpc: unsupported wallet payload field %T", f))
		}
	}
	return out
}

func signedMessage[T signedParams](raw json.RawMessage) (signedTarget, error) {
	p, err := decodeParams[T](raw)
	if err != nil {
		return signedTarget{}, err
	}
	return p.target(), nil
}

type rotateSignerParams struct {
	Agent      models.Key `json:"agent"`
	NextSigner models.Key `json:"next_signer"`
	signedBy
}

func (p rotateSignerParams) target() signedTarget {
	return signedTarget{p.Agent, contracts.ActionRotateAgentSigner, registry.RotateSignerPayload(p.NextSigner)}
}

type createEnclaveParams struct {
	Agent        models.Key  `json:"agent"`
	NameHash     models.Hash `json:"name_hash"`
	MetadataHash models.Hash `json:"metadata_hash"`
	signedBy
}

func (p createEnclaveParams) target() signedTarget {
	return signedTarget{p.Agent, contracts.ActionCreateEnclave, enclave.CreatePayload(p.NameHash, p.MetadataHash)}
}

type anchorPostParams struct {
	Agent        models.Key  `json:"agent"`
	Enclave      models.Key  `json:"enclave"`
	ContentHash  models.Hash `json:"content_hash"`
	ManifestHash models.Hash `json:"manifest_hash"`
	signedBy
}

func (p anchorPostParams) target() signedTarget {
	return signedTarget{p.Agent, contracts.ActionAnchorPost, entries.PostPayload(p.Enclave, p.ContentHash, p.ManifestHash)}
}

type anchorCommentParams struct {
	Agent        models.Key  `json:"agent"`
	ReplyTo      models.Key  `json:"reply_to"`
	ContentHash  models.Hash `json:"content_hash"`
	ManifestHash models.Hash `json:"manifest_hash"`
	signedBy
}

func (p anchorCommentParams) target() signedTarget {
	return signedTarget{p.Agent, contracts.ActionAnchorComment, entries.CommentPayload(p.ReplyTo, p.ContentHash, p.ManifestHash)}
}

type castVoteParams struct {
	Voter models.Key `json:"voter"`
	Post  models.Key `json:"post"`
	Value int8       `json:"value"`
	signedBy
}

func (p castVoteParams) target() signedTarget {
	return signedTarget{p.Voter, contracts.ActionCastVote, entries.VotePayload(p.Post, p.Value)}
}

type placeBidParams struct {
	Bidder      models.Key  `json:"bidder"`
	Job         models.Key  `json:"job"`
	BidLamports uint64      `json:"bid_lamports"`
	MessageHash models.Hash `json:"message_hash"`
	signedBy
}

func (p placeBidParams) target() signedTarget {
	return signedTarget{p.Bidder, contracts.ActionPlaceJobBid, jobs.BidPayload(p.Job, p.BidLamports, p.MessageHash)}
}

type withdrawBidParams struct {
	Bidder models.Key `json:"bidder"`
	Bid    models.Key `json:"bid"`
	signedBy
}

func (p withdrawBidParams) target() signedTarget {
	return signedTarget{p.Bidder, contracts.ActionWithdrawJobBid, jobs.WithdrawBidPayload(p.Bid)}
}

type submitWorkParams struct {
	Agent          models.Key  `json:"agent"`
	Job            models.Key  `json:"job"`
	SubmissionHash models.Hash `json:"submission_hash"`
	signedBy
}

func (p submitWorkParams) target() signedTarget {
	return signedTarget{p.Agent, contracts.ActionSubmitJobWork, jobs.SubmitPayload(p.Job, p.SubmissionHash)}
}

type callerParams struct {
	Caller models.Key `json:"caller"`
	signedBy
}

func (p callerParams) signedWallet() walletTarget {
	return walletTarget{p.Caller, nil}
}

type initAgentParams struct {
	Owner models.Key `json:"owner"`
	registry.InitAgentRequest
	signedBy
}

func (p initAgentParams) signedWallet() walletTarget {
	r := p.InitAgentRequest
	return walletTarget{p.Owner, walletPayload(r.AgentID, r.DisplayName, r.Traits, r.MetadataHash, r.AgentSigner)}
}

type vaultParams struct {
	Caller models.Key `json:"caller"`
	Agent  models.Key `json:"agent"`
	Amount uint64     `json:"amount"`
	signedBy
}

func (p vaultParams) signedWallet() walletTarget {
	return walletTarget{p.Caller, walletPayload(p.Agent, p.Amount)}
}

type createJobParams struct {
	Creator      models.Key  `json:"creator"`
	Nonce        uint64      `json:"nonce"`
	MetadataHash models.Hash `json:"metadata_hash"`
	Budget       uint64      `json:"budget"`
	signedBy
}

func (p createJobParams) signedWallet() walletTarget {
	return walletTarget{p.Creator, walletPayload(p.Nonce, p.MetadataHash, p.Budget)}
}

type jobActionParams struct {
	Creator models.Key `json:"creator"`
	Job     models.Key `json:"job"`
	Bid     models.Key `json:"bid"`
	signedBy
}

func (p jobActionParams) signedWallet() walletTarget {
	return walletTarget{p.Creator, walletPayload(p.Job, p.Bid)}
}

type submitTipParams struct {
	Tipper models.Key `json:"tipper"`
	tips.SubmitTipRequest
	signedBy
}

func (p submitTipParams) signedWallet() walletTarget {
	r := p.SubmitTipRequest
	return walletTarget{p.Tipper, walletPayload(r.ContentHash, r.Amount, uint8(r.SourceType), r.TargetEnclave, r.Nonce)}
}

type tipActionParams struct {
	Caller models.Key `json:"caller"`
	Tip    models.Key `json:"tip"`
	signedBy
}

func (p tipActionParams) signedWallet() walletTarget {
	return walletTarget{p.Caller, walletPayload(p.Tip)}
}

type transferParams struct {
	Caller models.Key `json:"caller"`
	To     models.Key `json:"to"`
	Amount uint64     `json:"amount"`
	signedBy
}

func (p transferParams) signedWallet() walletTarget {
	return walletTarget{p.Caller, walletPayload(p.To, p.Amount)}
}

type airdropParams struct {
	To     models.Key `json:"to"`
	Amount uint64     `json:"amount"`
}

type addressParams struct {
	Address models.Key `json:"address"`
}

type authMessageParams struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type deriveParams struct {
	Kind     string      `json:"kind"`
	Owner    models.Key  `json:"owner"`
	AgentID  models.Hash `json:"agent_id"`
	Agent    models.Key  `json:"agent"`
	Index    uint32      `json:"index"`
	Post     models.Key  `json:"post"`
	NameHash models.Hash `json:"name_hash"`
	Creator  models.Key  `json:"creator"`
	Nonce    uint64      `json:"nonce"`
	Job      models.Key  `json:"job"`
	Tipper   models.Key  `json:"tipper"`
	Tip      models.Key  `json:"tip"`
}

func keyResult(name string, key models.Key) map[string]any {
	return map[string]any{name: key}
}

func (s *Server) methodTable() map[string]handlerFunc {
	svc := s.service
	return map[string]handlerFunc{
		"health_check": noParams(func(context.Context) (any, error) {
			return map[string]any{"status": "ok", "program": svc.Program()}, nil
		}),

		"config.initialize": walletCall(s, "config.initialize", func(ctx context.Context, p callerParams) (any, error) {
			addr, err := svc.InitializeConfig(ctx, p.Caller)
			return keyResult("config", addr), err
		}),
		"agent.initialize": walletCall(s, "agent.initialize", func(ctx context.Context, p initAgentParams) (any, error) {
			return svc.InitializeAgent(ctx, p.Owner, p.InitAgentRequest)
		}),
		"agent.rotate_signer": signedCall(s, func(ctx context.Context, p rotateSignerParams, sig contracts.AgentSignature) (any, error) {
			return keyResult("agent", p.Agent), svc.RotateAgentSigner(ctx, p.Agent, sig, p.NextSigner)
		}),
		"vault.deposit": walletCall(s, "vault.deposit", func(ctx context.Context, p vaultParams) (any, error) {
			return keyResult("vault", svc.Addresses().Vault(p.Agent)), svc.DepositToVault(ctx, p.Caller, p.Agent, p.Amount)
		}),
		"vault.withdraw": walletCall(s, "vault.withdraw", func(ctx context.Context, p vaultParams) (any, error) {
			return keyResult("vault", svc.Addresses().Vault(p.Agent)), svc.WithdrawFromVault(ctx, p.Caller, p.Agent, p.Amount)
		}),

		"enclave.create": signedCall(s, func(ctx context.Context, p createEnclaveParams, sig contracts.AgentSignature) (any, error) {
			addr, err := svc.CreateEnclave(ctx, p.Agent, sig, p.NameHash, p.MetadataHash)
			return keyResult("enclave", addr), err
		}),
		"entry.anchor_post": signedCall(s, func(ctx context.Context, p anchorPostParams, sig contracts.AgentSignature) (any, error) {
			addr, err := svc.AnchorPost(ctx, p.Agent, sig, p.Enclave, p.ContentHash, p.ManifestHash)
			return keyResult("post", addr), err
		}),
		"entry.anchor_comment": signedCall(s, func(ctx context.Context, p anchorCommentParams, sig contracts.AgentSignature) (any, error) {
			addr, err := svc.AnchorComment(ctx, p.Agent, sig, p.ReplyTo, p.ContentHash, p.ManifestHash)
			return keyResult("post", addr), err
		}),
		"entry.cast_vote": signedCall(s, func(ctx context.Context, p castVoteParams, sig contracts.AgentSignature) (any, error) {
			addr, err := svc.CastVote(ctx, p.Voter, sig, p.Post, p.Value)
			return keyResult("vote", addr), err
		}),

		"job.create": walletCall(s, "job.create", func(ctx context.Context, p createJobParams) (any, error) {
			return svc.CreateJob(ctx, p.Creator, p.Nonce, p.MetadataHash, p.Budget)
		}),
		"job.place_bid": signedCall(s, func(ctx context.Context, p placeBidParams, sig contracts.AgentSignature) (any, error) {
			addr, err := svc.PlaceJobBid(ctx, p.Bidder, sig, p.Job, p.BidLamports, p.MessageHash)
			return keyResult("bid", addr), err
		}),
		"job.withdraw_bid": signedCall(s, func(ctx context.Context, p withdrawBidParams, sig contracts.AgentSignature) (any, error) {
			return keyResult("bid", p.Bid), svc.WithdrawJobBid(ctx, p.Bidder, sig, p.Bid)
		}),
		"job.accept_bid": walletCall(s, "job.accept_bid", func(ctx context.Context, p jobActionParams) (any, error) {
			return keyResult("job", p.Job), svc.AcceptJobBid(ctx, p.Creator, p.Job, p.Bid)
		}),
		"job.submit_work": signedCall(s, func(ctx context.Context, p submitWorkParams, sig contracts.AgentSignature) (any, error) {
			addr, err := svc.SubmitJobWork(ctx, p.Agent, sig, p.Job, p.SubmissionHash)
			return keyResult("submission", addr), err
		}),
		"job.approve": walletCall(s, "job.approve", func(ctx context.Context, p jobActionParams) (any, error) {
			return svc.ApproveJobSubmission(ctx, p.Creator, p.Job)
		}),

		"tip.submit": walletCall(s, "tip.submit", func(ctx context.Context, p submitTipParams) (any, error) {
			return svc.SubmitTip(ctx, p.Tipper, p.SubmitTipRequest)
		}),
		"tip.settle": walletCall(s, "tip.settle", func(ctx context.Context, p tipActionParams) (any, error) {
			return svc.SettleTip(ctx, p.Caller, p.Tip)
		}),
		"tip.refund": walletCall(s, "tip.refund", func(ctx context.Context, p tipActionParams) (any, error) {
			amount, err := svc.RefundTip(ctx, p.Caller, p.Tip)
			return map[string]any{"refunded": amount}, err
		}),
		"tip.claim_timeout_refund": walletCall(s, "tip.claim_timeout_refund", func(ctx context.Context, p tipActionParams) (any, error) {
			amount, err := svc.ClaimTimeoutRefund(ctx, p.Caller, p.Tip)
			return map[string]any{"refunded": amount}, err
		}),

		"treasury.withdraw": walletCall(s, "treasury.withdraw", func(ctx context.Context, p transferParams) (any, error) {
			return keyResult("to", p.To), svc.WithdrawTreasury(ctx, p.Caller, p.To, p.Amount)
		}),
		"faucet.airdrop": call(func(ctx context.Context, p airdropParams) (any, error) {
			return keyResult("to", p.To), svc.Airdrop(ctx, p.To, p.Amount)
		}),

		"config.get": noParams(func(ctx context.Context) (any, error) {
			return svc.Config(ctx)
		}),
		"treasury.get": noParams(func(ctx context.Context) (any, error) {
			return svc.Treasury(ctx)
		}),
		"ledger.supply": noParams(func(ctx context.Context) (any, error) {
			report, err := svc.Supply(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"slot":      report.Slot,
				"minted":    strconv.FormatUint(report.Minted, 10),
				"held":      report.Held.Dec(),
				"conserved": report.Conserved(),
			}, nil
		}),
		"agent.get": call(func(ctx context.Context, p struct {
			Agent models.Key `json:"agent"`
		}) (any, error) {
			return svc.Agent(ctx, p.Agent)
		}),
		"vault.balance": call(func(ctx context.Context, p struct {
			Agent models.Key `json:"agent"`
		}) (any, error) {
			balance, err := svc.VaultBalance(ctx, p.Agent)
			return map[string]any{"available": balance}, err
		}),
		"enclave.get": call(func(ctx context.Context, p struct {
			Enclave models.Key `json:"enclave"`
		}) (any, error) {
			return svc.Enclave(ctx, p.Enclave)
		}),
		"entry.get_post": call(func(ctx context.Context, p struct {
			Post models.Key `json:"post"`
		}) (any, error) {
			return svc.Post(ctx, p.Post)
		}),
		"entry.get_vote": call(func(ctx context.Context, p struct {
			Vote models.Key `json:"vote"`
		}) (any, error) {
			return svc.Vote(ctx, p.Vote)
		}),
		"job.get": call(func(ctx context.Context, p struct {
			Job models.Key `json:"job"`
		}) (any, error) {
			return svc.Job(ctx, p.Job)
		}),
		"job.get_escrow": call(func(ctx context.Context, p struct {
			Job models.Key `json:"job"`
		}) (any, error) {
			return svc.JobEscrow(ctx, p.Job)
		}),
		"job.get_bid": call(func(ctx context.Context, p struct {
			Bid models.Key `json:"bid"`
		}) (any, error) {
			return svc.JobBid(ctx, p.Bid)
		}),
		"job.get_submission": call(func(ctx context.Context, p struct {
			Job models.Key `json:"job"`
		}) (any, error) {
			return svc.JobSubmission(ctx, p.Job)
		}),
		"tip.get": call(func(ctx context.Context, p struct {
			Tip models.Key `json:"tip"`
		}) (any, error) {
			return svc.Tip(ctx, p.Tip)
		}),
		"tip.get_escrow": call(func(ctx context.Context, p struct {
			Tip models.Key `json:"tip"`
		}) (any, error) {
			return svc.TipEscrow(ctx, p.Tip)
		}),
		"tip.get_rate_limit": call(func(ctx context.Context, p struct {
			Tipper models.Key `json:"tipper"`
		}) (any, error) {
			return svc.RateLimit(ctx, p.Tipper)
		}),
		"account.balance": call(func(ctx context.Context, p addressParams) (any, error) {
			balance, err := svc.Balance(ctx, p.Address)
			return map[string]any{"lamports": balance}, err
		}),

		"address.derive": call(func(_ context.Context, p deriveParams) (any, error) {
			addr, err := s.derive(p)
			if err != nil {
				return nil, err
			}
			return keyResult("address", addr), nil
		}),
		"auth.message": call(func(_ context.Context, p authMessageParams) (any, error) {
			if build, ok := walletMessages[p.Method]; ok {
				t, err := build(p.Params)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"kind":    "wallet",
					"signer":  t.wallet,
					"message": base64.StdEncoding.EncodeToString(WalletMessage(svc.Program(), t.wallet, p.Method, t.payload)),
				}, nil
			}
			build, ok := signedMessages[p.Method]
			if !ok {
				return nil, errInvalidParams
			}
			t, err := build(p.Params)
			if err != nil {
				return nil, err
			}
			msg := contracts.AgentMessage(svc.Program(), t.agent, t.action, t.payload)
			return map[string]any{
				"kind":    "agent",
				"action":  t.action.String(),
				"agent":   t.agent,
				"message": base64.StdEncoding.EncodeToString(msg),
			}, nil
		}),
	}
}

var signedMessages = map[string]func(json.RawMessage) (signedTarget, error){
	"agent.rotate_signer":  signedMessage[rotateSignerParams],
	"enclave.create":       signedMessage[createEnclaveParams],
	"entry.anchor_post":    signedMessage[anchorPostParams],
	"entry.anchor_comment": signedMessage[anchorCommentParams],
	"entry.cast_vote":      signedMessage[castVoteParams],
	"job.place_bid":        signedMessage[placeBidParams],
	"job.withdraw_bid":     signedMessage[withdrawBidParams],
	"job.submit_work":      signedMessage[submitWorkParams],
}

var walletMessages = map[string]func(json.RawMessage) (walletTarget, error){
	"config.initialize":        walletMessage[callerParams],
	"agent.initialize":         walletMessage[initAgentParams],
	"vault.deposit":            walletMessage[vaultParams],
	"vault.withdraw":           walletMessage[vaultParams],
	"job.create":               walletMessage[createJobParams],
	"job.accept_bid":           walletMessage[jobActionParams],
	"job.approve":              walletMessage[jobActionParams],
	"tip.submit":               walletMessage[submitTipParams],
	"tip.settle":               walletMessage[tipActionParams],
	"tip.refund":               walletMessage[tipActionParams],
	"tip.claim_timeout_refund": walletMessage[tipActionParams],
	"treasury.withdraw":        walletMessage[transferParams],
}

func (s *Server) derive(p deriveParams) (models.Key, error) {
	d := s.service.Addresses()
	switch p.Kind {
	case "config":
		return d.Config(), nil
	case "treasury":
		return d.Treasury(), nil
	case "agent":
		return d.Agent(p.Owner, p.AgentID), nil
	case "vault":
		return d.Vault(p.Agent), nil
	case "post":
		return d.Post(p.Agent, p.Index), nil
	case "vote":
		return d.Vote(p.Post, p.Agent), nil
	case "enclave":
		return d.Enclave(p.NameHash), nil
	case "job":
		return d.Job(p.Creator, p.Nonce), nil
	case "job_escrow":
		return d.JobEscrow(p.Job), nil
	case "job_bid":
		return d.JobBid(p.Job, p.Agent), nil
	case "job_submission":
		return d.JobSubmission(p.Job), nil
	case "tip":
		return d.Tip(p.Tipper, p.Nonce), nil
	case "tip_escrow":
		return d.TipEscrow(p.Tip), nil
	case "rate_limit":
		return d.RateLimit(p.Tipper), nil
	default:
		return models.Key{}, errInvalidParams
	}
}
