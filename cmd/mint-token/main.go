// Command mint-token prints a bearer token for local development.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	apphttp "cardledger/internal/http"
)

func main() {
	_ = godotenv.Load()

	owner := flag.Int64("owner", 1, "owner id placed in the userId claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}
	if *owner <= 0 {
		fmt.Fprintln(os.Stderr, "-owner must be positive")
		os.Exit(1)
	}

	token, err := apphttp.IssueToken(apphttp.NewTokenAuth(secret), *owner, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
