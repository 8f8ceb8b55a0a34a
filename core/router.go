package core

import "fmt"

// Selector tags the fixed set of directive handlers (C4). The router
// stores tags rather than closures bound to a *Client, per spec §9's
// guidance to avoid v-table dispatch when the handler set is closed at
// compile time; Client.HandleServerDirective switches on the tag.
type Selector int

const (
	SelectorUnknown Selector = iota
	SelectorNeedsAuth
	SelectorLoginSuccessful
	SelectorLoginInvalid
	SelectorTooManyAuthAttempts
	SelectorProviderAcknowledged
	SelectorRPCCallReceived
)

func (s Selector) String() string {
	switch s {
	case SelectorNeedsAuth:
		return "needs-auth"
	case SelectorLoginSuccessful:
		return "login-successful"
	case SelectorLoginInvalid:
		return "login-invalid"
	case SelectorTooManyAuthAttempts:
		return "too-many-auth-attempts"
	case SelectorProviderAcknowledged:
		return "provider-acknowledged"
	case SelectorRPCCallReceived:
		return "rpc-call-received"
	default:
		return "unknown"
	}
}

// directiveTable is the fixed prefix -> selector mapping of spec §4.4.
// Field separators below are PartSeparator (0x1F); frame terminators are
// MessageSeparator (0x1E), spelled out explicitly for readability since
// these are control bytes.
var directiveTable = []struct {
	prefix   string
	selector Selector
}{
	{"C\x1fA\x1e", SelectorNeedsAuth},
	{"A\x1fA", SelectorLoginSuccessful},
	{"A\x1fE\x1fINVALID_AUTH_DATA\x1f", SelectorLoginInvalid},
	{"A\x1fE\x1fTOO_MANY_AUTH_ATTEMPTS\x1f", SelectorTooManyAuthAttempts},
	{"P\x1fA\x1fS\x1f", SelectorProviderAcknowledged},
	{"P\x1fREQ\x1f", SelectorRPCCallReceived},
}

// Router is the directive dispatcher of C4: a prefix-keyed array over the
// fixed directive table, immutable after construction so it is safe to
// read from multiple goroutines without synchronization (spec §5, "the
// router is immutable after first initialisation").
type Router struct {
	table *PrefixKeyedArray[Selector]
}

// NewRouter builds the router from the fixed directive table, asserting
// each prefix is within MaxDirectiveLen and the table within
// MaxHandlersCount — both programmer-error conditions per spec §7, since
// the table is a compile-time constant, never user input.
func NewRouter() *Router {
	if len(directiveTable) > MaxHandlersCount {
		panic(fmt.Errorf("core: directive table has %d entries, MaxHandlersCount=%d: %w", len(directiveTable), MaxHandlersCount, ErrTooManyHandlers))
	}
	r := &Router{table: NewPrefixKeyedArray[Selector]()}
	for _, e := range directiveTable {
		if len(e.prefix) >= MaxDirectiveLen {
			panic(fmt.Errorf("core: directive %q: %w", e.prefix, ErrDirectiveTooLong))
		}
		r.table.InsertKV([]byte(e.prefix), e.selector)
	}
	return r
}

// defaultRouter is the process-wide singleton of spec §4.4 and §9:
// "initialised once from a static table ... not thread-local storage".
var defaultRouter = NewRouter()

// DefaultRouter returns the shared process-wide Router.
func DefaultRouter() *Router {
	return defaultRouter
}

// Dispatch runs a longest-common-prefix search against the registered
// directives and returns the matching Selector, or SelectorUnknown if no
// registered prefix matches frame.
func (r *Router) Dispatch(frame []byte) Selector {
	return r.table.PrefixMatch(frame, SelectorUnknown)
}
