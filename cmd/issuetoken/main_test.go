package main

import (
	"testing"
	"time"

	"github.com/SkelleTu/UltraPix/internal/infra"
	"github.com/SkelleTu/UltraPix/internal/middleware"
)

func TestIssueProducesTokenTheAPIAccepts(t *testing.T) {
	cfg := &infra.Config{JWTSecret: "issue-secret", JWTIssuer: "ultrapix", JWTAudience: "ultrapix-web"}

	token, err := issue(cfg, " alice ", "Alice", time.Hour)
	if err != nil {
		t.Fatalf("issue returned error: %v", err)
	}
	claims, err := middleware.VerifyJWT(cfg.JWTSecret, token, middleware.ClaimChecks(cfg.JWTIssuer, cfg.JWTAudience)...)
	if err != nil {
		t.Fatalf("VerifyJWT returned error: %v", err)
	}
	if claims.Subject != "alice" || claims.Name != "Alice" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) > time.Hour {
		t.Fatalf("ExpiresAt = %v, want within an hour", claims.ExpiresAt)
	}
}

func TestIssueRejectsBadFlags(t *testing.T) {
	cfg := &infra.Config{JWTSecret: "issue-secret"}
	if _, err := issue(cfg, "  ", "", time.Hour); err == nil {
		t.Fatalf("expected error for missing subject")
	}
	if _, err := issue(cfg, "alice", "", -time.Minute); err == nil {
		t.Fatalf("expected error for negative ttl")
	}
}
