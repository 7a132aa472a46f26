package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"pacochain/cmd/internal/passphrase"
	"pacochain/crypto"
	"pacochain/indexer"
)

const (
	defaultPassEnv   = "PACO_KEYSTORE_PASS"
	defaultSecretEnv = "PACO_GATEWAY_SECRET"
	defaultKeystore  = "paco.keystore"
	defaultScope     = "paco:write"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "keygen":
		err = runKeygen(os.Args[2:], os.Stdout)
	case "address":
		err = runAddress(os.Args[2:], os.Stdout)
	case "module-address":
		err = runModuleAddress(os.Args[2:], os.Stdout)
	case "token":
		err = runToken(os.Args[2:], os.Stdout)
	case "export":
		err = runExport(os.Args[2:], os.Stdout)
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	default:
		usage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: pacoctl <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  keygen          create an encrypted account keystore")
	fmt.Fprintln(w, "  address         print the account address held in a keystore")
	fmt.Fprintln(w, "  module-address  derive a module account such as paco/vault")
	fmt.Fprintln(w, "  token           mint a gateway bearer token for an account")
	fmt.Fprintln(w, "  export          export indexed ledger events to parquet")
}

func runKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	path := fs.String("out", defaultKeystore, "Output path for the keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*force {
		if _, err := os.Stat(*path); err == nil {
			return fmt.Errorf("keystore file %s already exists (use --force to overwrite)", *path)
		} else if !os.IsNotExist(err) {
			return err
		}
	}
	pass, err := passphrase.NewSource(*passEnv, passphrase.WithConfirmation()).Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*path, key, pass); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	fmt.Fprintf(out, "address: %s\nkeystore: %s\n", key.PubKey().Address(), *path)
	return nil
}

func runAddress(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	path := fs.String("keystore", defaultKeystore, "Path to the keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := keystoreAddress(*path, *passEnv)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, addr)
	return nil
}

func keystoreAddress(path, passEnv string) (crypto.Address, error) {
	pass, err := passphrase.NewSource(passEnv).Get()
	if err != nil {
		return crypto.Address{}, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("failed to open keystore: %w", err)
	}
	return key.PubKey().Address(), nil
}

func runModuleAddress(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("module-address", flag.ContinueOnError)
	name := fs.String("name", "paco/vault", "Module account name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*name) == "" {
		return errors.New("module name required")
	}
	fmt.Fprintln(out, crypto.ModuleAddress(*name))
	return nil
}

type tokenOptions struct {
	Subject  string
	Secret   string
	Issuer   string
	Audience string
	Scope    string
	TTL      time.Duration
	Now      time.Time
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	account := fs.String("account", "", "Account address used as the token subject")
	keystore := fs.String("keystore", "", "Read the subject from this keystore instead of -account")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	secretEnv := fs.String("secret-env", defaultSecretEnv, "Environment variable containing the gateway HMAC secret")
	issuer := fs.String("issuer", "", "Token issuer")
	audience := fs.String("audience", "", "Token audience")
	scope := fs.String("scope", defaultScope, "Space separated scopes")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	subject := strings.TrimSpace(*account)
	if *keystore != "" {
		addr, err := keystoreAddress(*keystore, *passEnv)
		if err != nil {
			return err
		}
		subject = addr.String()
	}
	secret, ok := os.LookupEnv(*secretEnv)
	if !ok || strings.TrimSpace(secret) == "" {
		return fmt.Errorf("environment variable %s is not set", *secretEnv)
	}
	token, err := signToken(tokenOptions{
		Subject:  subject,
		Secret:   secret,
		Issuer:   *issuer,
		Audience: *audience,
		Scope:    *scope,
		TTL:      *ttl,
		Now:      time.Now(),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func signToken(opts tokenOptions) (string, error) {
	addr, err := crypto.ParseAddress(opts.Subject)
	if err != nil {
		return "", fmt.Errorf("invalid subject: %w", err)
	}
	if opts.TTL <= 0 {
		return "", errors.New("ttl must be positive")
	}
	claims := jwt.MapClaims{
		"sub": addr.String(),
		"iat": opts.Now.Unix(),
		"exp": opts.Now.Add(opts.TTL).Unix(),
	}
	if opts.Issuer != "" {
		claims["iss"] = opts.Issuer
	}
	if opts.Audience != "" {
		claims["aud"] = opts.Audience
	}
	if opts.Scope != "" {
		claims["scope"] = opts.Scope
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(opts.Secret))
}

func runExport(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	dsn := fs.String("dsn", "", "Indexer DSN (sqlite path or postgres URL)")
	path := fs.String("out", "paco-events.parquet", "Output parquet file")
	asset := fs.Uint64("asset", 0, "Only export events of this asset")
	account := fs.String("account", "", "Only export events touching this account")
	eventType := fs.String("type", "", "Only export events of this type")
	after := fs.Uint64("after", 0, "Resume after this sequence number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*dsn) == "" {
		return errors.New("-dsn is required")
	}
	store, err := indexer.Open(*dsn)
	if err != nil {
		return err
	}
	defer store.Close()
	n, err := store.ExportParquet(context.Background(), *path, indexer.Query{
		AssetID:  *asset,
		Account:  strings.TrimSpace(*account),
		Type:     strings.TrimSpace(*eventType),
		AfterSeq: *after,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "exported %d events to %s\n", n, *path)
	return nil
}
