package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/angganurf/wunderland-sol/internal/keyring"
)

type rpcClient struct {
	url   string
	token string
	http  *http.Client
	seq   int
}

type rpcReply struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"error"`
}

func (c *rpcClient) call(ctx context.Context, method string, params any, idemKey string) (json.RawMessage, error) {
	c.seq++
	body, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": c.seq, "method": method, "params": params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("X-Ledger-RPC-Token", c.token)
	}
	if idemKey != "" {
		req.Header.Set("X-Ledger-Idempotency-Key", idemKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, exitError{code: exitRPCFailed, err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, exitError{code: exitRPCFailed, err: fmt.Errorf("rpc %s: http %s", method, resp.Status)}
	}
	var reply rpcReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, exitError{code: exitRPCFailed, err: fmt.Errorf("decode rpc reply: %w", err)}
	}
	if reply.Error != nil {
		return nil, exitError{code: exitRPCFailed, err: fmt.Errorf("rpc %s: %d %s %s", method, reply.Error.Code, reply.Error.Message, reply.Error.Data)}
	}
	return reply.Result, nil
}

// signingKeys are the keys of one derivation index. Wallet signs methods whose
// principal is a wallet; agent signs methods an agent authorizes.
type signingKeys struct {
	wallet ed25519.PrivateKey
	agent  ed25519.PrivateKey
}

// signParams asks the daemon for the canonical message of method and attaches
// a proof made with the matching key to params.
func signParams(ctx context.Context, c *rpcClient, method string, params map[string]any, keys signingKeys) error {
	delete(params, "auth")
	raw, err := c.call(ctx, "auth.message", map[string]any{"method": method, "params": params}, "")
	if err != nil {
		return err
	}
	var msg struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return err
	}
	payload, err := base64.StdEncoding.DecodeString(msg.Message)
	if err != nil {
		return err
	}
	key := keys.agent
	if msg.Kind == "wallet" {
		key = keys.wallet
	}
	if key == nil {
		return invalidInput("no %s key to sign %s", msg.Kind, method)
	}
	params["auth"] = map[string]any{
		"signer":    keyring.PublicKey(key),
		"signature": base64.StdEncoding.EncodeToString(ed25519.Sign(key, payload)),
	}
	return nil
}

func runCall(args []string) error {
	fs := pflag.NewFlagSet("call", pflag.ContinueOnError)
	url := fs.String("rpc", "http://127.0.0.1:8899/rpc", "JSON-RPC endpoint")
	token := fs.String("token", os.Getenv("WLEDGER_RPC_TOKEN"), "RPC token")
	method := fs.String("method", "", "RPC method")
	rawParams := fs.String("params", "{}", "params as a JSON object")
	sign := fs.Bool("sign", false, "attach a wallet or agent signer proof derived from the seed")
	idemKey := fs.String("idempotency-key", "", "replay-safe request key")
	timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
	var seed seedFlags
	seed.add(fs)
	if err := fs.Parse(args); err != nil {
		return invalidInput("%v", err)
	}
	if *method == "" {
		return invalidInput("--method is required")
	}
	params := map[string]any{}
	dec := json.NewDecoder(strings.NewReader(*rawParams))
	dec.UseNumber()
	if err := dec.Decode(&params); err != nil {
		return invalidInput("--params: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	client := &rpcClient{url: *url, token: *token, http: &http.Client{}}
	if *sign {
		kr, err := seed.keyring()
		if err != nil {
			return invalidInput("%v", err)
		}
		var keys signingKeys
		if keys.wallet, err = kr.Wallet(seed.index); err != nil {
			return err
		}
		if keys.agent, err = kr.AgentSigner(seed.index); err != nil {
			return err
		}
		if err := signParams(ctx, client, *method, params, keys); err != nil {
			return err
		}
	}
	result, err := client.call(ctx, *method, params, *idemKey)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		_, err = os.Stdout.Write(append(result, '\n'))
		return err
	}
	pretty.WriteByte('\n')
	_, err = pretty.WriteTo(os.Stdout)
	return err
}
