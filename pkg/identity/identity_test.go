package identity

import (
	"context"
	"testing"
)

func TestPrincipalHasRole(t *testing.T) {
	p := Principal{Roles: []string{"admin", "player"}}
	if !p.HasRole("admin") {
		t.Fatal("expected HasRole(admin) = true")
	}
	if p.HasRole("moderator") {
		t.Fatal("expected HasRole(moderator) = false")
	}
}

func TestContextRoundTrip(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("expected no principal on a bare context")
	}

	ctx := WithPrincipal(context.Background(), Principal{ID: "p1"})
	got, ok := FromContext(ctx)
	if !ok || got.ID != "p1" {
		t.Fatalf("FromContext = %+v, %v", got, ok)
	}
}

func TestResolverFuncAdapts(t *testing.T) {
	var r Resolver = ResolverFunc(func(ctx context.Context, credential string) (Principal, error) {
		return Principal{ID: credential}, nil
	})
	p, err := r.Resolve(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.ID != "tok-1" {
		t.Fatalf("ID = %q, want tok-1", p.ID)
	}
}
