package buildinfo

import (
	"context"
	"testing"
)

func TestVersionFromEnvironment(t *testing.T) {
	t.Setenv("BUILD_VERSION", "1.2.3")
	if got := Version(); got != "1.2.3" {
		t.Fatalf("version %q", got)
	}
	t.Setenv("BUILD_VERSION", "")
	if got := Version(); got == "" {
		t.Fatal("empty fallback version")
	}
}

func TestBackend(t *testing.T) {
	switch b := Backend(); b {
	case "builtin", "liboqs":
	default:
		t.Fatalf("unexpected backend %q", b)
	}
}

func TestResource(t *testing.T) {
	if _, err := Resource(context.Background(), "", "dev", nil); err == nil {
		t.Fatal("expected error without service name")
	}
	res, err := Resource(context.Background(), "kemctl", "test", map[string]string{"team": "crypto"})
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	if got["service.name"] != "kemctl" || got["team"] != "crypto" || got["kem.backend"] != Backend() {
		t.Fatalf("unexpected attributes %v", got)
	}
}
