package core

import "testing"

func TestRouterDispatchMatchesFixedTable(t *testing.T) {
	r := NewRouter()

	cases := []struct {
		frame string
		want  Selector
	}{
		{"C\x1fA\x1e", SelectorNeedsAuth},
		{"A\x1fA", SelectorLoginSuccessful},
		{"A\x1fAextra-ignored-tail", SelectorLoginSuccessful},
		{"A\x1fE\x1fINVALID_AUTH_DATA\x1f{\"reason\":\"bad\"}", SelectorLoginInvalid},
		{"A\x1fE\x1fTOO_MANY_AUTH_ATTEMPTS\x1f", SelectorTooManyAuthAttempts},
		{"P\x1fA\x1fS\x1fecho\x1e", SelectorProviderAcknowledged},
		{"P\x1fREQ\x1fecho\x1fu1\x1f{}\x1e", SelectorRPCCallReceived},
		{"Z\x1fGARBAGE\x1e", SelectorUnknown},
		{"", SelectorUnknown},
	}
	for _, c := range cases {
		if got := r.Dispatch([]byte(c.frame)); got != c.want {
			t.Fatalf("Dispatch(%q) = %v, want %v", c.frame, got, c.want)
		}
	}
}

func TestDefaultRouterIsSharedSingleton(t *testing.T) {
	a := DefaultRouter()
	b := DefaultRouter()
	if a != b {
		t.Fatalf("DefaultRouter() returned distinct instances")
	}
	if got := a.Dispatch([]byte("A\x1fA")); got != SelectorLoginSuccessful {
		t.Fatalf("Dispatch via shared router = %v, want SelectorLoginSuccessful", got)
	}
}

func TestRouterTableWithinLimits(t *testing.T) {
	if len(directiveTable) > MaxHandlersCount {
		t.Fatalf("directive table has %d entries, exceeds MaxHandlersCount=%d", len(directiveTable), MaxHandlersCount)
	}
	for _, e := range directiveTable {
		if len(e.prefix) >= MaxDirectiveLen {
			t.Fatalf("directive %q is %d bytes, must be < MaxDirectiveLen=%d", e.prefix, len(e.prefix), MaxDirectiveLen)
		}
	}
}
