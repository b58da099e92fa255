package contracts

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/angganurf/wunderland-sol/pkg/models"
)

func TestCatalogue_CodesAreSequentialAndNamesUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for i, e := range Catalogue() {
		if want := ErrorCodeBase + uint32(i); e.Code != want {
			t.Fatalf("code for %s: got=%d want=%d", e.Name, e.Code, want)
		}
		if _, dup := seen[e.Name]; dup {
			t.Fatalf("duplicate error name %q", e.Name)
		}
		seen[e.Name] = struct{}{}
		got, ok := Lookup(e.Code)
		if !ok || got != e {
			t.Fatalf("lookup %d: got=%v ok=%v", e.Code, got, ok)
		}
	}
}

func TestCatalogue_StableLeadingCodes(t *testing.T) {
	cases := []struct {
		err  *Error
		code uint32
	}{
		{ErrInvalidTraitValue, 6000},
		{ErrSelfVote, 6005},
		{ErrAgentSignerEqualsOwner, 6010},
		{ErrMissingEd25519Instruction, 6011},
		{ErrTipBelowMinimum, 6022},
		{ErrArithmeticOverflow, 6029},
		{ErrUnauthorizedJobCreator, 6030},
	}
	for _, tc := range cases {
		if tc.err.Code != tc.code {
			t.Fatalf("%s: got=%d want=%d", tc.err.Name, tc.err.Code, tc.code)
		}
	}
	if _, ok := Lookup(5999); ok {
		t.Fatal("expected lookup below base to fail")
	}
}

func TestWrapCategorizedError_NewErrorUsesProvidedCategory(t *testing.T) {
	wrapped := WrapCategorizedError(CategoryResource, errors.New("boom"))
	var classified *CategorizedError
	if !errors.As(wrapped, &classified) {
		t.Fatalf("expected categorized error, got %T", wrapped)
	}
	if classified.Category != CategoryResource {
		t.Fatalf("expected category=%q, got %q", CategoryResource, classified.Category)
	}
}

func TestWrapCategorizedError_NormalizesUnknownCategoryToInfrastructure(t *testing.T) {
	wrapped := WrapCategorizedError("unknown", errors.New("boom"))
	if got := CategoryOf(wrapped); got != CategoryInfrastructure {
		t.Fatalf("expected category=%q, got %q", CategoryInfrastructure, got)
	}
}

func TestWrapCategorizedError_KeepsLedgerErrors(t *testing.T) {
	err := WrapCategorizedError(CategoryInfrastructure, fmt.Errorf("tx: %w", ErrSelfVote))
	if !errors.Is(err, ErrSelfVote) {
		t.Fatalf("expected ErrSelfVote, got %v", err)
	}
	if got := CategoryOf(err); got != CategoryState {
		t.Fatalf("expected category=%q, got %q", CategoryState, got)
	}
}

func TestCategoryOf_DefaultsToInfrastructureForRegularErrors(t *testing.T) {
	if got := CategoryOf(errors.New("plain")); got != CategoryInfrastructure {
		t.Fatalf("expected default category=%q, got %q", CategoryInfrastructure, got)
	}
}

func TestPolicy_RentFloor(t *testing.T) {
	p := DefaultPolicy()
	if err := p.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	// (128 + 49) * 3480 * 2
	if got, want := p.RentFloor(49), uint64(1_231_920); got != want {
		t.Fatalf("rent floor: got=%d want=%d", got, want)
	}
	p.EnclaveSharePercent = 101
	if err := p.Validate(); !errors.Is(err, ErrInvalidPercentage) {
		t.Fatalf("expected ErrInvalidPercentage, got %v", err)
	}
	huge := Policy{RentLamportsPerByteYear: ^uint64(0), RentExemptionYears: 2}
	if got := huge.RentFloor(1); got != ^uint64(0) {
		t.Fatalf("expected saturated floor, got %d", got)
	}
}

func TestAgentSignature_Check(t *testing.T) {
	signer := models.Key{7}
	msg := AgentMessage(models.Key{1}, models.Key{2}, ActionAnchorPost, []byte("payload"))
	cases := []struct {
		name string
		sig  AgentSignature
		want error
	}{
		{"missing", AgentSignature{}, ErrMissingEd25519Instruction},
		{"unverified", AgentSignature{Signer: signer, Message: msg}, ErrInvalidEd25519Instruction},
		{"wrong signer", AgentSignature{Signer: models.Key{8}, Message: msg, Verified: true}, ErrSignaturePublicKeyMismatch},
		{"wrong message", AgentSignature{Signer: signer, Message: []byte("other"), Verified: true}, ErrSignatureMessageMismatch},
		{"ok", AgentSignature{Signer: signer, Message: msg, Verified: true}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.sig.Check(signer, msg); !errors.Is(err, tc.want) {
				t.Fatalf("got=%v want=%v", err, tc.want)
			}
		})
	}
}

func TestAgentMessage_BindsAction(t *testing.T) {
	a := AgentMessage(models.Key{1}, models.Key{2}, ActionAnchorPost, nil)
	b := AgentMessage(models.Key{1}, models.Key{2}, ActionAnchorComment, nil)
	if string(a) == string(b) {
		t.Fatal("expected different messages for different actions")
	}
}

func TestStaticAuthority(t *testing.T) {
	if _, err := (StaticAuthority{}).UpgradeAuthority(context.Background()); !errors.Is(err, ErrProgramImmutable) {
		t.Fatalf("expected ErrProgramImmutable, got %v", err)
	}
	want := models.Key{9}
	got, err := StaticAuthority{Authority: want}.UpgradeAuthority(context.Background())
	if err != nil || got != want {
		t.Fatalf("got=%v err=%v want=%v", got, err, want)
	}
}
