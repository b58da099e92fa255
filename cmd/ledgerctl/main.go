package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/angganurf/wunderland-sol/internal/keyring"
)

const (
	exitOK           = 0
	exitFailed       = 1
	exitInvalidInput = 10
	exitRPCFailed    = 20

	mnemonicEnv = "WLEDGER_MNEMONIC"
)

type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string { return e.err.Error() }

func invalidInput(format string, args ...any) error {
	return exitError{code: exitInvalidInput, err: fmt.Errorf(format, args...)}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitInvalidInput)
	}

	var err error
	switch os.Args[1] {
	case "mnemonic":
		err = runMnemonic()
	case "keys":
		err = runKeys(os.Args[2:])
	case "save-seed":
		err = runSaveSeed(os.Args[2:])
	case "call":
		err = runCall(os.Args[2:])
	default:
		printUsage()
		os.Exit(exitInvalidInput)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		if ee, ok := err.(exitError); ok {
			os.Exit(ee.code)
		}
		os.Exit(exitFailed)
	}
	os.Exit(exitOK)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: ledgerctl <mnemonic|keys|save-seed|call> [flags]")
}

type seedFlags struct {
	file       string
	secret     string
	passphrase string
	index      uint32
}

func (s *seedFlags) add(fs *pflag.FlagSet) {
	fs.StringVar(&s.file, "seed-file", "", "encrypted mnemonic written by save-seed (default: $"+mnemonicEnv+")")
	fs.StringVar(&s.secret, "secret", os.Getenv("WLEDGER_SEED_SECRET"), "secret protecting --seed-file")
	fs.StringVar(&s.passphrase, "passphrase", "", "optional BIP-39 passphrase")
	fs.Uint32Var(&s.index, "index", 0, "derivation index")
}

func (s *seedFlags) keyring() (*keyring.Keyring, error) {
	if s.file != "" {
		return keyring.Load(s.file, s.secret, s.passphrase)
	}
	return keyring.FromMnemonic(os.Getenv(mnemonicEnv), s.passphrase)
}

func runMnemonic() error {
	m, err := keyring.NewMnemonic()
	if err != nil {
		return err
	}
	fmt.Println(m)
	return nil
}

func runKeys(args []string) error {
	fs := pflag.NewFlagSet("keys", pflag.ContinueOnError)
	var seed seedFlags
	seed.add(fs)
	if err := fs.Parse(args); err != nil {
		return invalidInput("%v", err)
	}
	kr, err := seed.keyring()
	if err != nil {
		return invalidInput("%v", err)
	}
	wallet, err := kr.Wallet(seed.index)
	if err != nil {
		return err
	}
	signer, err := kr.AgentSigner(seed.index)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"index":        seed.index,
		"wallet":       keyring.PublicKey(wallet),
		"agent_signer": keyring.PublicKey(signer),
	})
}

func runSaveSeed(args []string) error {
	fs := pflag.NewFlagSet("save-seed", pflag.ContinueOnError)
	out := fs.String("out", "", "destination file")
	secret := fs.String("secret", os.Getenv("WLEDGER_SEED_SECRET"), "secret to encrypt with")
	if err := fs.Parse(args); err != nil {
		return invalidInput("%v", err)
	}
	if *out == "" || strings.TrimSpace(*secret) == "" {
		return invalidInput("--out and --secret are required")
	}
	mnemonic := os.Getenv(mnemonicEnv)
	if mnemonic == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return invalidInput("mnemonic is required on stdin or $%s", mnemonicEnv)
		}
		mnemonic = line
	}
	if err := keyring.Save(*out, *secret, mnemonic); err != nil {
		return invalidInput("%v", err)
	}
	return printJSON(map[string]any{"saved": *out})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
