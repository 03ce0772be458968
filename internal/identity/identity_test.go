package identity

import (
	"context"
	"testing"
	"time"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("s3cret")
	tok, err := v.Issue(User{ID: "u1", Role: RoleAdmin, Email: "ana@example.com"}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	u, err := v.FromHeader("Bearer " + tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if u.ID != "u1" || !u.IsAdmin() || u.Email != "ana@example.com" {
		t.Fatalf("user = %+v", u)
	}
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier("s3cret")
	expired, _ := v.Issue(User{ID: "u1"}, -time.Minute)
	foreign, _ := NewVerifier("other").Issue(User{ID: "u1"}, time.Minute)
	anonymous, _ := v.Issue(User{}, time.Minute)

	for name, h := range map[string]string{
		"empty":      "",
		"no scheme":  "abc",
		"expired":    "Bearer " + expired,
		"bad sig":    "Bearer " + foreign,
		"no subject": "Bearer " + anonymous,
	} {
		if _, err := v.FromHeader(h); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("empty context has a user")
	}
	ctx := WithUser(context.Background(), User{ID: "u1"})
	if u, ok := FromContext(ctx); !ok || u.ID != "u1" {
		t.Fatalf("user = %+v ok=%v", u, ok)
	}
}
