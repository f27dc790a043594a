package env

import "testing"

func TestLookupPrefersEarlierKeys(t *testing.T) {
	t.Setenv("KUADRAT_TEST_PRIMARY", "")
	t.Setenv("KUADRAT_TEST_SECONDARY", " 8080 ")

	if got := Lookup("3000", "KUADRAT_TEST_PRIMARY", "KUADRAT_TEST_SECONDARY"); got != "8080" {
		t.Fatalf("expected secondary value, got %q", got)
	}

	t.Setenv("KUADRAT_TEST_PRIMARY", "9090")
	if got := Lookup("3000", "KUADRAT_TEST_PRIMARY", "KUADRAT_TEST_SECONDARY"); got != "9090" {
		t.Fatalf("expected primary value, got %q", got)
	}
}

func TestLookupFallback(t *testing.T) {
	if got := Lookup("json", "KUADRAT_TEST_UNSET"); got != "json" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := Lookup("json"); got != "json" {
		t.Fatalf("expected fallback without keys, got %q", got)
	}
}
