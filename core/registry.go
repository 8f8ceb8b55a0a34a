package core

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"
)

// RPCCall is the call descriptor C5/C6 hand to a registered handler,
// grounded on original_source/include/rpc.h's _rpcCall: pointers into the
// received frame rather than copies, plus the owning Buf so a handler can
// mutate the frame in place to build its response (§4.6).
type RPCCall struct {
	Method string
	UID    string
	Params []byte
	Buf    *Buf
}

// RPCHandler is the §4.5 handler signature. Return 0 for success, nonzero
// for a transport error, matching the original's plain int contract.
type RPCHandler func(call *RPCCall, c *Client) int

type rpcEntry struct {
	name       string
	handler    RPCHandler
	cacheable  bool
	cache      *RPCCache
	tombstoned bool
}

// FrameSender is the minimal capability the registry needs to advertise or
// unadvertise a provider; *Client satisfies this.
type FrameSender interface {
	SendFrame(frame []byte) error
}

// Registry is C5: method name -> handler, with advertise/unadvertise
// framing and tombstone-on-unregister semantics (§4.5). Slots never move,
// so callers may hold a name across unregister/re-register cycles.
//
// Not safe for concurrent use by its owning Client (single-threaded
// cooperative model, §5) — but pkg/debugsrv reads it from an HTTP
// handler goroutine, so a mirror is kept in an xsync.MapOf for lock-free
// concurrent reads, following stages/limit.go's xsync idiom.
type Registry struct {
	arr    *KeyedArray[*rpcEntry]
	mirror *xsync.MapOf[string, bool] // name -> live (true) / tombstoned (false)

	sender FrameSender
	ready  bool
}

// NewRegistry returns an empty registry that advertises through sender.
func NewRegistry(sender FrameSender) *Registry {
	return &Registry{
		arr:    NewKeyedArray[*rpcEntry](),
		mirror: xsync.NewMapOf[string, bool](),
		sender: sender,
	}
}

// Register binds handler to name, reusing name's slot if it was
// unregistered; it fails with ErrAlreadyRegistered if name is bound to a
// live handler and with ErrMethodTooLong if name is too long. If the client is
// currently ready, a "P|S|name<MS>" advertise frame is sent immediately;
// otherwise advertisement is deferred to the next AdvertiseAll (on
// reaching ready).
func (r *Registry) Register(name string, handler RPCHandler, cacheable bool) error {
	if len(name) >= MaxMethodNameLen {
		return fmt.Errorf("%q: %w", name, ErrMethodTooLong)
	}
	if slot := r.arr.FindKey([]byte(name)); slot >= 0 {
		if existing := r.arr.At(slot); existing != nil && !existing.tombstoned {
			return fmt.Errorf("%q: %w", name, ErrAlreadyRegistered)
		}
	}

	e := &rpcEntry{name: name, handler: handler, cacheable: cacheable}
	if cacheable {
		e.cache = NewRPCCache()
	}
	r.arr.InsertKV([]byte(name), e)
	r.mirror.Store(name, true)

	if r.ready {
		return r.advertise(name)
	}
	return nil
}

// Unregister tombstones name's slot. A no-op, returning nil, if name was
// never registered or is already tombstoned.
func (r *Registry) Unregister(name string) error {
	slot := r.arr.FindKey([]byte(name))
	if slot < 0 {
		return nil
	}
	e := r.arr.At(slot)
	if e.tombstoned {
		return nil
	}
	r.arr.UpdateValue(slot, &rpcEntry{name: name, tombstoned: true})
	r.mirror.Store(name, false)

	if r.ready {
		return r.unadvertise(name)
	}
	return nil
}

// SetReady toggles the registry's readiness. Transitioning to ready
// triggers AdvertiseAll, matching §4.6's on_login_successful behavior
// ("(re)send the rpc providers to server").
func (r *Registry) SetReady(ready bool) error {
	r.ready = ready
	if ready {
		return r.AdvertiseAll()
	}
	return nil
}

// AdvertiseAll sends a "provide" frame for every live (non-tombstoned)
// entry, skipping tombstones. Called on each transition to ready.
func (r *Registry) AdvertiseAll() error {
	var firstErr error
	r.arr.Iterate(func(e KeyedArrayEntry[*rpcEntry]) bool {
		if e.Value.tombstoned {
			return true
		}
		if err := r.advertise(e.Value.name); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

func (r *Registry) advertise(name string) error {
	frame := make([]byte, 0, 4+len(name))
	frame = append(frame, 'P', PartSeparator, 'S', PartSeparator)
	frame = append(frame, name...)
	frame = append(frame, MessageSeparator)
	return r.sender.SendFrame(frame)
}

func (r *Registry) unadvertise(name string) error {
	frame := make([]byte, 0, 5+len(name))
	frame = append(frame, 'P', PartSeparator, 'U', 'S', PartSeparator)
	frame = append(frame, name...)
	frame = append(frame, MessageSeparator)
	return r.sender.SendFrame(frame)
}

// Entry looks up the live handler and its optional result cache for name.
// ok is false if name was never registered or is tombstoned.
func (r *Registry) Entry(name string) (handler RPCHandler, cache *RPCCache, ok bool) {
	slot := r.arr.FindKey([]byte(name))
	if slot < 0 {
		return nil, nil, false
	}
	e := r.arr.At(slot)
	if e.tombstoned {
		return nil, nil, false
	}
	return e.handler, e.cache, true
}

// Snapshot returns a point-in-time name -> live map, safe to call
// concurrently with the owning Client's single-threaded operations — used
// by pkg/debugsrv.
func (r *Registry) Snapshot() map[string]bool {
	out := make(map[string]bool)
	r.mirror.Range(func(name string, live bool) bool {
		out[name] = live
		return true
	})
	return out
}
