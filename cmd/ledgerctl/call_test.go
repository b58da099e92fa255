package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/angganurf/wunderland-sol/internal/adapters/rpc"
	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/keyring"
	"github.com/angganurf/wunderland-sol/internal/ledger"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestCallSignsWalletAndAgentMethods(t *testing.T) {
	kr, err := keyring.FromMnemonic(testMnemonic, "")
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	walletKey, _ := kr.Wallet(0)
	signerKey, _ := kr.AgentSigner(0)
	authorityKey, _ := kr.Wallet(1)
	owner, authority := keyring.PublicKey(walletKey), keyring.PublicKey(authorityKey)
	ownerKeys := signingKeys{wallet: walletKey, agent: signerKey}

	policy := contracts.DefaultPolicy()
	policy.DevFaucet = true
	l, err := ledger.New(store.New(nil), ledger.Options{
		Program:   models.Key{0x50},
		Policy:    policy,
		Authority: contracts.StaticAuthority{Authority: authority},
	})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	srv := httptest.NewServer(rpc.NewServer(l, rpc.Options{Token: "tok", RequireSignatures: true}).Handler())
	defer srv.Close()

	ctx := context.Background()
	client := &rpcClient{url: srv.URL + "/rpc", token: "tok", http: srv.Client()}
	mustCall := func(method string, params map[string]any) json.RawMessage {
		t.Helper()
		out, err := client.call(ctx, method, params, "")
		if err != nil {
			t.Fatalf("%s: %v", method, err)
		}
		return out
	}
	for _, k := range []models.Key{authority, owner} {
		mustCall("faucet.airdrop", map[string]any{"to": k, "amount": 50 * models.LamportsPerUnit})
	}
	mustSign := func(method string, params map[string]any, keys signingKeys) {
		t.Helper()
		if err := signParams(ctx, client, method, params, keys); err != nil {
			t.Fatalf("sign %s: %v", method, err)
		}
	}

	initParams := map[string]any{"caller": authority}
	if _, err := client.call(ctx, "config.initialize", initParams, ""); err == nil {
		t.Fatal("expected unsigned config.initialize to be rejected")
	}
	mustSign("config.initialize", initParams, ownerKeys)
	if _, err := client.call(ctx, "config.initialize", initParams, ""); err == nil {
		t.Fatal("expected config.initialize signed by another wallet to be rejected")
	}
	mustSign("config.initialize", initParams, signingKeys{wallet: authorityKey})
	mustCall("config.initialize", initParams)

	var agent struct {
		Agent models.Key `json:"agent"`
	}
	agentParams := map[string]any{
		"owner":         owner,
		"agent_id":      models.Hash{0x01},
		"display_name":  "scout",
		"traits":        []int{1, 2, 3, 4, 5, 6},
		"metadata_hash": models.Hash{0x02},
		"agent_signer":  keyring.PublicKey(signerKey),
	}
	mustSign("agent.initialize", agentParams, ownerKeys)
	raw := mustCall("agent.initialize", agentParams)
	if err := json.Unmarshal(raw, &agent); err != nil {
		t.Fatalf("decode agent: %v", err)
	}

	params := map[string]any{"agent": agent.Agent, "name_hash": models.Hash{0x10}, "metadata_hash": models.Hash{0x11}}
	if _, err := client.call(ctx, "enclave.create", params, ""); err == nil {
		t.Fatal("expected unsigned enclave.create to be rejected")
	}
	mustSign("enclave.create", params, ownerKeys)
	mustCall("enclave.create", params)
	if _, err := l.Enclave(ctx, l.Addresses().Enclave(models.Hash{0x10})); err != nil {
		t.Fatalf("enclave not stored: %v", err)
	}
}

func TestSignParamsNeedsMatchingKey(t *testing.T) {
	l, err := ledger.New(store.New(nil), ledger.Options{Program: models.Key{0x50}, Policy: contracts.DefaultPolicy()})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	srv := httptest.NewServer(rpc.NewServer(l, rpc.Options{}).Handler())
	defer srv.Close()
	client := &rpcClient{url: srv.URL + "/rpc", http: srv.Client()}
	kr, _ := keyring.FromMnemonic(testMnemonic, "")
	signerKey, _ := kr.AgentSigner(0)

	params := map[string]any{"creator": models.Key{0x01}, "nonce": 1, "metadata_hash": models.Hash{0x01}, "budget": 10}
	err = signParams(context.Background(), client, "job.create", params, signingKeys{agent: signerKey})
	var ee exitError
	if !errors.As(err, &ee) || ee.code != exitInvalidInput {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCallReportsHTTPFailures(t *testing.T) {
	srv := httptest.NewServer(rpc.NewServer(nil, rpc.Options{Token: "tok"}).Handler())
	defer srv.Close()
	client := &rpcClient{url: srv.URL + "/rpc", token: "wrong", http: srv.Client()}
	_, err := client.call(context.Background(), "health_check", nil, "")
	var ee exitError
	if !errors.As(err, &ee) || ee.code != exitRPCFailed {
		t.Fatalf("unexpected error: %v", err)
	}
}
