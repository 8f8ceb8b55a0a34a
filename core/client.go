package core

import (
	"fmt"

	"github.com/buger/jsonparser"
	"github.com/rs/zerolog"
)

// Transport is the §6 "required from collaborator" contract: the socket
// (or websocket) layer the Client drives. AllocSendBuffer/Send/Disconnect
// mirror the original's IO::alloc_send_buffer/send/disconnect trio; the
// inbound direction is push-based instead (Transport calls
// Client.HandleServerDirective per received frame), matching Go's
// reader-goroutine idiom over libuv's callback style.
type Transport interface {
	AllocSendBuffer(size int) *Buf
	Send(buf *Buf, onComplete func(err error)) error
	Disconnect() error
}

// AuditRecorder receives one call per dispatched RPC request (accepted,
// rejected for an unknown method, or handled with a nonzero return),
// matching SPEC_FULL.md's audit-sink supplemented feature. Implementations
// must not block — pkg/audit's sinks enqueue onto a buffered channel and
// drain in the background.
type AuditRecorder interface {
	RecordRPC(method, uid string, params []byte)
}

// Client is C6: the protocol state machine. Not safe for concurrent use —
// one event loop owns it, per spec §5.
type Client struct {
	zerolog.Logger

	transport Transport
	creds     Credentials
	router    *Router
	registry  *Registry

	loginRetries int
	ready        bool
	connected    bool

	metrics *Metrics      // nil unless SetMetrics is called; all uses are nil-safe
	auditor AuditRecorder // nil unless SetAuditor is called

	// OnReady is invoked once per transition to ready (after
	// advertiseAll has run), supplemented from the original's dead
	// on_ready_to_transfer hook. Optional.
	OnReady func(c *Client)
}

// NewClient wires a Client over an already-established Transport. The
// caller is expected to call HandleServerDirective for each frame the
// transport delivers, starting immediately after connect.
func NewClient(transport Transport, creds Credentials, logger zerolog.Logger) *Client {
	c := &Client{
		Logger:    logger.With().Str("component", "client").Logger(),
		transport: transport,
		creds:     creds,
		router:    DefaultRouter(),
		connected: true,
	}
	c.registry = NewRegistry(c)
	return c
}

// SetMetrics attaches a Metrics instance the client updates as it runs.
// Optional; a Client with no Metrics attached simply skips instrumentation.
func (c *Client) SetMetrics(m *Metrics) {
	c.metrics = m
}

// SetAuditor attaches an AuditRecorder that is notified of every dispatched
// RPC request, regardless of outcome. Optional; a Client with no auditor
// attached simply skips the call.
func (c *Client) SetAuditor(a AuditRecorder) {
	c.auditor = a
}

// Registry returns the client's RPC registry, for Register/Unregister calls.
func (c *Client) Registry() *Registry {
	return c.registry
}

// Ready reports whether the last login succeeded and the transport is live.
func (c *Client) Ready() bool {
	return c.ready
}

// Connected reports whether the transport is still live.
func (c *Client) Connected() bool {
	return c.connected
}

// LoginRetries reports the number of failed auth attempts since the last
// successful login, for introspection by pkg/debugsrv.
func (c *Client) LoginRetries() int {
	return c.loginRetries
}

// SendFrame writes frame through the transport, allocating a pool buffer
// sized to fit. Satisfies core.FrameSender for Registry.
func (c *Client) SendFrame(frame []byte) error {
	buf := c.transport.AllocSendBuffer(len(frame))
	copy(buf.Get(), frame)
	return c.transport.Send(buf, nil)
}

// sendAuth composes and sends the A|REQ|{...}<MS> login frame, per §4.6.
func (c *Client) sendAuth() error {
	payload := fmt.Appendf(nil, `{"username":%q,"password":%q}`, c.creds.Username(), c.creds.Password())
	frame := make([]byte, 0, 8+len(payload))
	frame = append(frame, 'A', PartSeparator)
	frame = append(frame, "REQ"...)
	frame = append(frame, PartSeparator)
	frame = append(frame, payload...)
	frame = append(frame, MessageSeparator)
	return c.SendFrame(frame)
}

// HandleServerDirective is the transport's inbound entry point: one call
// per <MS>-delimited frame, handing ownership of buf to the Client.
func (c *Client) HandleServerDirective(buf *Buf) {
	defer func() {
		if r := recover(); r != nil {
			c.Error().Interface("panic", r).Msg("recovered panic handling server directive")
		}
	}()

	frame := buf.Get()
	switch c.router.Dispatch(frame) {
	case SelectorNeedsAuth:
		buf.Release()
		if err := c.sendAuth(); err != nil {
			c.Error().Err(err).Msg("send_auth failed")
		}
	case SelectorLoginSuccessful:
		buf.Release()
		c.loginRetries = 0
		c.ready = true
		c.metrics.setReady(true)
		if err := c.registry.SetReady(true); err != nil {
			c.Error().Err(err).Msg("advertiseAll failed")
		}
		if c.OnReady != nil {
			c.OnReady(c)
		}
	case SelectorLoginInvalid:
		buf.Release()
		c.onLoginInvalid()
	case SelectorTooManyAuthAttempts:
		buf.Release()
		c.Warn().Err(ErrTooManyAuthAttempts).Msg("server reported too many auth attempts, disconnecting")
		c.metrics.setReady(false)
		if err := c.transport.Disconnect(); err != nil {
			c.Error().Err(err).Msg("disconnect failed")
		}
	case SelectorProviderAcknowledged:
		buf.Release() // acknowledgement only, no-op
	case SelectorRPCCallReceived:
		c.onRPCCallReceived(buf) // buf ownership transferred onward
	default:
		c.Warn().Err(ErrUnknownDirective).Hex("directive", frame[:min(len(frame), MaxDirectiveLen)]).Msg("discarding unknown server directive")
		buf.Release()
	}
}

func (c *Client) onLoginInvalid() {
	if c.loginRetries < c.creds.MaxRetries() {
		c.loginRetries++
		c.metrics.incAuthRetry()
		if err := c.sendAuth(); err != nil {
			c.Error().Err(err).Msg("send_auth retry failed")
		}
		return
	}
	c.Warn().Err(ErrTooManyRetries).Int("retries", c.loginRetries).Msg("exceeded max auth retries, disconnecting")
	c.metrics.setReady(false)
	if err := c.transport.Disconnect(); err != nil {
		c.Error().Err(err).Msg("disconnect failed")
	}
}

// OnTransportClosed must be called by the transport when the underlying
// connection goes away, per §4.6's "transport closes" transition.
func (c *Client) OnTransportClosed() {
	c.ready = false
	c.connected = false
	c.metrics.setReady(false)
}

// rpcPrefixLen is len("P" + PS + "REQ" + PS): the fixed 6-byte prefix
// skipped at the start of on_rpc_call_received, per §4.6 step 1.
const rpcPrefixLen = 6

// onRPCCallReceived implements §4.6's "RPC request parsing": frame is
// P|REQ|METHOD|UID|PARAMS<MS>.
func (c *Client) onRPCCallReceived(buf *Buf) {
	frame := buf.Get()
	if len(frame) < rpcPrefixLen {
		c.malformed(buf, "frame shorter than the fixed RPC prefix")
		return
	}
	rest := frame[rpcPrefixLen:]

	methodEnd := indexByteCapped(rest, PartSeparator, MaxMethodNameLen)
	if methodEnd < 0 {
		c.malformed(buf, "method name missing terminator or too long")
		return
	}
	method := string(rest[:methodEnd])
	rest = rest[methodEnd+1:]

	uidEnd := indexByteCapped(rest, PartSeparator, MaxUIDLen)
	if uidEnd < 0 {
		c.malformed(buf, "uid missing terminator or too long")
		return
	}
	uid := string(rest[:uidEnd])
	params := rest[uidEnd+1:]
	params = trimTrailingMessageSeparator(params)

	if c.auditor != nil {
		c.auditor.RecordRPC(method, uid, params)
	}

	handler, cache, ok := c.registry.Entry(method)
	if !ok {
		c.metrics.incRPCRejected()
		c.sendRPCReject(buf, method, uid)
		return
	}
	c.metrics.incRPC()

	if err := c.sendRPCAck(method, uid); err != nil {
		c.Error().Err(err).Str("method", method).Str("uid", uid).Msg("rpc ack send failed")
	}

	if cache != nil {
		if cached, hit := cache.Find(params); hit {
			c.SendRPCResult(buf, cached.ResultType, cached.Payload)
			return
		}
	}

	call := &RPCCall{Method: method, UID: uid, Params: params, Buf: buf}
	c.tracePreview("rpc call", params)
	if rc := handler(call, c); rc != 0 {
		c.Warn().Str("method", method).Str("uid", uid).Int("rc", rc).Msg("rpc handler returned failure")
	}
}

func (c *Client) malformed(buf *Buf, reason string) {
	c.Error().Err(ErrMalformedFrame).Str("reason", reason).Msg("discarding malformed rpc frame")
	buf.Release()
}

// sendRPCAck sends P|A|METHOD|UID<MS> from a freshly allocated buffer,
// per §4.6 step 6 ("NEW buffer from the pool").
func (c *Client) sendRPCAck(method, uid string) error {
	frame := make([]byte, 0, 4+len(method)+len(uid))
	frame = append(frame, 'P', PartSeparator, 'A', PartSeparator)
	frame = append(frame, method...)
	frame = append(frame, PartSeparator)
	frame = append(frame, uid...)
	frame = append(frame, MessageSeparator)
	return c.SendFrame(frame)
}

// sendRPCReject mutates buf in place into a REJ frame and submits it,
// per §4.6's REJ encoding.
func (c *Client) sendRPCReject(buf *Buf, method, uid string) {
	raw := buf.Get()
	raw[4] = 'J' // REQ -> REJ
	// method and uid bytes, plus the PS between and after them, are already
	// in place from the inbound REQ frame; just overwrite the PS that
	// followed uid (the start of PARAMS) with the terminator.
	n := rpcPrefixLen + len(method) + 1 + len(uid)
	raw[n] = MessageSeparator
	buf.Resize(n + 1)
	if err := c.transport.Send(buf, nil); err != nil {
		c.Error().Err(err).Str("method", method).Str("uid", uid).Msg("rpc reject send failed")
	}
}

// SendRPCResultString is a convenience wrapper sending a string-typed
// result, matching §4.6's "single 'send a string result' helper".
func (c *Client) SendRPCResultString(call *RPCCall, result string) {
	c.SendRPCResult(call.Buf, 'S', []byte(result))
}

// SendRPCResult rewrites call's inbound request buffer into a response in
// place and submits it: offset 4 becomes 'S' (REQ -> RES), the type tag
// and payload are written at the start of the PARAMS region, followed by
// the <MS> terminator (§4.6 "Response encoding (mutate-in-place)").
// Consumes buf: the caller must not touch it afterwards. Panics (via
// Buf.Resize) if the response does not fit the buffer's size class.
func (c *Client) SendRPCResult(buf *Buf, resultType byte, payload []byte) {
	raw := buf.Get()
	raw[4] = 'S' // REQ -> RES

	rest := raw[rpcPrefixLen:]
	methodEnd := indexByteCapped(rest, PartSeparator, MaxMethodNameLen)
	rest = rest[methodEnd+1:]
	uidEnd := indexByteCapped(rest, PartSeparator, MaxUIDLen)
	paramsStart := rpcPrefixLen + methodEnd + 1 + uidEnd + 1

	// The response may be longer than the request; grow the view within
	// the buffer's size class before writing tag, payload and terminator.
	n := paramsStart + 1 + len(payload) + 1
	buf.Resize(n)
	raw = buf.Get()
	raw[paramsStart] = resultType
	copy(raw[paramsStart+1:], payload)
	raw[n-1] = MessageSeparator

	if err := c.transport.Send(buf, nil); err != nil {
		c.Error().Err(err).Msg("rpc result send failed")
	}
}

// tracePreview logs a best-effort JSON field preview of payload at trace
// level without ever treating payload as anything but opaque bytes to the
// core itself — grounded on stages/ris-live.go's jsonparser usage for
// non-intrusive log enrichment.
func (c *Client) tracePreview(msg string, payload []byte) {
	ev := c.Trace()
	if t, err := jsonparser.GetString(payload, "type"); err == nil {
		ev = ev.Str("json_type", t)
	}
	ev.Bytes("payload", payload).Msg(msg)
}

// indexByteCapped returns the index of sep within b[:min(len(b),cap)], or
// -1 if not found within that bound (matching §4.6's "capped at MAX_*_LEN,
// overflow or premature end => malformed" rule).
func indexByteCapped(b []byte, sep byte, cap int) int {
	limit := min(len(b), cap)
	for i := 0; i < limit; i++ {
		if b[i] == sep {
			return i
		}
	}
	return -1
}

func trimTrailingMessageSeparator(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == MessageSeparator {
		return b[:n-1]
	}
	return b
}
