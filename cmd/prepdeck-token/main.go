package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prepdeck/prepdeck/internal/auth"
	"github.com/prepdeck/prepdeck/internal/config"
)

// prepdeck-token mints a development bearer token for a user id using the
// configured jwt secret and issuer.
func main() {
	userID := flag.String("user", "", "user id placed in the token subject")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: prepdeck-token -user <id> [-ttl 24h]")
		os.Exit(2)
	}

	config.Load()
	authConfig := config.Auth()

	lifetime := authConfig.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}

	token, err := auth.NewIssuer(authConfig.JWTSecret, authConfig.Issuer, lifetime).Issue(*userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
