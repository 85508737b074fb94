// Command issuetoken signs a bearer token for the API with the configured
// JWT_SECRET (and JWT_ISSUER/JWT_AUDIENCE when set).
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/SkelleTu/UltraPix/internal/infra"
	"github.com/SkelleTu/UltraPix/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	var (
		subFlag  string
		nameFlag string
		ttlFlag  time.Duration
	)
	flag.StringVar(&subFlag, "sub", "", "user id the token is issued for")
	flag.StringVar(&nameFlag, "name", "", "display name (optional)")
	flag.DurationVar(&ttlFlag, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	token, err := issue(cfg, subFlag, nameFlag, ttlFlag)
	if err != nil {
		exitWithError(err)
	}
	fmt.Println(token)
}

func issue(cfg *infra.Config, sub, name string, ttl time.Duration) (string, error) {
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return "", errors.New("-sub must be provided")
	}
	if ttl < 0 {
		return "", errors.New("-ttl must not be negative")
	}
	claims := middleware.NewTokenClaims(sub, ttl)
	claims.Name = strings.TrimSpace(name)
	claims.Issuer = cfg.JWTIssuer
	if cfg.JWTAudience != "" {
		claims.Audience = []string{cfg.JWTAudience}
	}
	return middleware.SignJWT(cfg.JWTSecret, claims)
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "issuetoken: %v\n", err)
	os.Exit(1)
}
