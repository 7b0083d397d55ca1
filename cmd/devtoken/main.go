// AngelaMos | 2026
// main.go

// Command devtoken creates a local ES256 key pair and mints access tokens
// the API accepts, standing in for the identity provider during development.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/carterperez-dev/entitlements/internal/auth"
)

func main() {
	var (
		keygen     = flag.Bool("keygen", false, "write a new key pair and exit")
		privateKey = flag.String("private-key", "keys/private.pem", "private key path")
		publicKey  = flag.String("public-key", "keys/public.pem", "public key path")
		subject    = flag.String("sub", "", "user id to put in the token")
		role       = flag.String("role", "user", "role claim (user or admin)")
		issuer     = flag.String("issuer", "academy-identity", "token issuer")
		audience   = flag.String("audience", "academy-api", "token audience")
		ttl        = flag.Duration("ttl", time.Hour, "token lifetime")
	)
	flag.Parse()

	if err := run(*keygen, *privateKey, *publicKey, *subject, *role, *issuer, *audience, *ttl); err != nil {
		slog.Error("devtoken failed", "error", err)
		os.Exit(1)
	}
}

func run(keygen bool, privateKey, publicKey, subject, role, issuer, audience string, ttl time.Duration) error {
	if keygen {
		if err := auth.GenerateKeyPair(privateKey, publicKey); err != nil {
			return err
		}
		slog.Info("key pair written", "private", privateKey, "public", publicKey)
		return nil
	}

	if subject == "" {
		return fmt.Errorf("-sub is required")
	}

	pem, err := os.ReadFile(privateKey)
	if err != nil {
		return fmt.Errorf("read private key: %w", err)
	}

	signer, err := auth.NewSignerFromPEM(pem, issuer, audience, ttl)
	if err != nil {
		return err
	}

	token, err := signer.Sign(subject, role)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
