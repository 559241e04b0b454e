package evnet

import (
	"sync"
	"sync/atomic"
	"time"
)

// queuedWrite is one entry in a pre-connect write queue: appended
// while CONNECTING, replayed through the normal write path in order
// once the handle comes up.
type queuedWrite struct {
	buf []byte
	cb  func(error)
}

// Socket is an asynchronous duplex byte stream over a StreamHandle —
// connect/write/end/destroy lifecycle, half-open support, and the
// inactivity timer coupling. Grounded on badu-http's conn.go/conn_reader.go
// for the read-loop/deadline idiom, generalized from conn's
// blocking-goroutine-per-connection model (one serve() call per
// accepted net.Conn, handler run synchronously in that goroutine) to a
// callback-driven one: Socket serializes its own state behind a
// mutex instead of relying on a single owning goroutine, since
// StreamHandle delivers reads from its own goroutine and user code
// calls Socket's methods from whichever goroutine it runs on.
type Socket struct {
	*EventEmitter

	mu     sync.Mutex
	flags  FlagSet
	handle StreamHandle

	resolver Resolver
	dialer   Dialer

	preConnectQueue  []queuedWrite
	connectQueueSize int64
	pendingWriteReqs int32

	bytesRead       int64
	bytesDispatched int64

	decoder *stringDecoder

	timer *inactivityTimer
	ticks *TickQueue

	// back-reference, non-owning; severed explicitly, never by GC.
	parser *HttpParser

	allowHalfOpen bool

	destroyCb       func(error)
	timeoutListener Listener
}

// NewSocket constructs an unconnected Socket. ticks supplies the
// next-tick queue used to defer error/close emission; if nil, a
// private one is started and owned by this Socket.
func NewSocket(ticks *TickQueue) *Socket {
	s := &Socket{
		EventEmitter: NewEventEmitter(),
		ticks:        ticks,
	}
	if s.ticks == nil {
		s.ticks = NewTickQueue()
	}
	s.timer = newInactivityTimer(DefaultTimerFactory, func() { s.Emit("timeout") })
	return s
}

// Adopt wires an already-connected handle (e.g. from an accept loop)
// directly into READABLE|WRITABLE, skipping the connect phase.
func Adopt(handle StreamHandle, ticks *TickQueue) *Socket {
	s := NewSocket(ticks)
	s.handle = handle
	s.flags.Set(FlagReadable | FlagWritable)
	s.startReading()
	return s
}

// SetAllowHalfOpen controls whether a peer FIN auto-triggers our own
// End(); must be set before Connect/Adopt observes EOF to take effect.
func (s *Socket) SetAllowHalfOpen(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowHalfOpen = v
	s.flags.SetTo(FlagAllowHalfOpen, v)
}

// SetResolver installs the DNS resolver Connect uses to turn a
// hostname into an address before dialing; when nil, Connect dials
// host directly.
func (s *Socket) SetResolver(r Resolver) { s.resolver = r }

// Dialer opens an outbound StreamHandle, the concrete counterpart of
// the transport handle's connect(addr, port) capability. A transport
// package supplies the net.Conn-backed implementation; Socket depends
// only on this interface so it never imports net itself.
type Dialer interface {
	Dial(addr string, port int) (StreamHandle, error)
}

// SetDialer installs the Dialer Connect uses to open the transport.
func (s *Socket) SetDialer(d Dialer) { s.dialer = d }

// AttachHandle installs the low-level transport; used by callers that
// construct the Socket before dialing (so listeners can be attached
// ahead of Connect).
func (s *Socket) AttachHandle(h StreamHandle) {
	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
}

// Connect resolves host (if not already adopted with a handle) and
// issues the connect request. host/port addresses TCP; for a pipe,
// pass port == 0 and a non-empty path via host.
func (s *Socket) Connect(host string, port int) bool {
	s.mu.Lock()
	if s.flags.Has(FlagDestroyed) || s.flags.Has(FlagConnecting) {
		s.mu.Unlock()
		return false
	}
	s.flags.Set(FlagConnecting | FlagWritable)
	s.mu.Unlock()

	dial := func(addr string) {
		if s.dialer == nil {
			s.Destroy(newError(KindIllegalState, ErrNoDialer))
			return
		}
		h, err := s.dialer.Dial(addr, port)
		if err != nil {
			s.Destroy(newError(KindConnectFailure, err))
			return
		}
		s.mu.Lock()
		s.handle = h
		s.mu.Unlock()
		s.onConnected()
	}

	if s.resolver == nil {
		dial(host)
		return true
	}
	s.resolver.Lookup(host, func(err error, ip string, addressType int) {
		if err != nil {
			s.Destroy(newError(KindDNSFailure, err))
			return
		}
		if ip == "" {
			ip = "127.0.0.1"
			if addressType == 6 {
				ip = "::1"
			}
		}
		dial(ip)
	})
	return true
}

// onConnected runs the CONNECTING -> READABLE|WRITABLE transition:
// starts reading (unless PAUSED), flushes the pre-connect queue in
// order, and emits "connect".
func (s *Socket) onConnected() {
	s.mu.Lock()
	if s.flags.Has(FlagDestroyed) {
		s.mu.Unlock()
		return
	}
	s.flags.Clear(FlagConnecting)
	s.flags.Set(FlagReadable | FlagWritable)
	shutdownQueued := s.flags.Has(FlagShutdownQueued)
	queue := s.preConnectQueue
	s.preConnectQueue = nil
	s.connectQueueSize = 0
	paused := s.flags.Has(FlagPaused)
	s.mu.Unlock()

	s.timer.Bump()
	if !paused {
		s.startReading()
	}
	s.flushQueuedWrites(queue)
	s.Emit("connect")

	if shutdownQueued {
		s.End(nil)
	}
}

func (s *Socket) startReading() {
	h := s.currentHandle()
	if h == nil {
		return
	}
	h.ReadStart(s.onReadData, s.onReadError)
}

func (s *Socket) currentHandle() StreamHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// onReadData is the transport's data callback: decode (if a string
// decoder is installed), emit "data", update bytesRead, bump the
// inactivity timer.
func (s *Socket) onReadData(buf []byte) {
	s.mu.Lock()
	if s.flags.Has(FlagDestroyed) {
		s.mu.Unlock()
		return
	}
	s.bytesRead += int64(len(buf))
	decoder := s.decoder
	parser := s.parser
	s.mu.Unlock()

	s.timer.Bump()

	if parser != nil {
		if _, err := parser.Execute(buf); err != nil {
			s.Destroy(err)
			return
		}
		return
	}

	if decoder != nil {
		str := decoder.Decode(buf)
		if str != "" {
			s.Emit("data", str)
		}
		return
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	s.Emit("data", out)
}

// onReadError is the transport's error callback: EOF drives the
// GOT_EOF transition, ECONNRESET destroys quietly, anything else
// destroys with the error.
func (s *Socket) onReadError(err error) {
	if isConnReset(err) {
		s.destroyQuiet()
		return
	}
	if isEOF(err) {
		s.onEOF()
		return
	}
	s.Destroy(newError(KindTransport, err))
}

func (s *Socket) onEOF() {
	s.mu.Lock()
	if s.flags.Has(FlagDestroyed) || s.flags.Has(FlagGotEOF) {
		s.mu.Unlock()
		return
	}
	s.flags.Set(FlagGotEOF)
	s.flags.Clear(FlagReadable)
	writable := s.flags.Has(FlagWritable)
	halfOpen := s.flags.Has(FlagAllowHalfOpen)
	s.mu.Unlock()

	if !writable {
		s.Destroy(nil)
		return
	}
	if !halfOpen {
		s.End(nil)
	}
	s.Emit("end")
}

// Write submits buf for writing. Returns false (and queues) while
// CONNECTING; returns false if not WRITABLE.
func (s *Socket) Write(buf []byte, cb func(error)) bool {
	s.mu.Lock()
	if s.flags.Has(FlagDestroyed) {
		s.mu.Unlock()
		return false
	}
	if s.flags.Has(FlagConnecting) {
		cp := append([]byte(nil), buf...)
		s.preConnectQueue = append(s.preConnectQueue, queuedWrite{buf: cp, cb: cb})
		s.connectQueueSize += int64(len(buf))
		s.bytesDispatched += int64(len(buf))
		s.mu.Unlock()
		return false
	}
	if !s.flags.Has(FlagWritable) {
		s.mu.Unlock()
		return false
	}
	s.bytesDispatched += int64(len(buf))
	s.mu.Unlock()

	s.submitWrite(buf, cb)
	return true
}

// flushQueuedWrites replays a pre-connect write queue in insertion
// order, per the "replayed in insertion order" contract: when the
// handle implements VectorWriter and more than one entry is queued,
// they go out as a single batched write instead of N sequential
// WriteBuffer calls; otherwise each entry is submitted individually.
func (s *Socket) flushQueuedWrites(queue []queuedWrite) {
	if len(queue) > 1 {
		if vw, ok := s.currentHandle().(VectorWriter); ok {
			s.submitWriteBatch(vw, queue)
			return
		}
	}
	for _, qw := range queue {
		s.submitWrite(qw.buf, qw.cb)
	}
}

func (s *Socket) submitWrite(buf []byte, cb func(error)) {
	h := s.currentHandle()
	if h == nil {
		if cb != nil {
			cb(newError(KindIllegalState, ErrNoHandle))
		}
		return
	}
	atomic.AddInt32(&s.pendingWriteReqs, 1)
	req, err := h.WriteBuffer(buf)
	if err != nil {
		atomic.AddInt32(&s.pendingWriteReqs, -1)
		if cb != nil {
			cb(err)
		}
		s.Destroy(newError(KindTransport, err))
		return
	}
	s.timer.Bump()
	req.OnComplete = s.writeCompletion([]func(error){cb})
}

// submitWriteBatch is flushQueuedWrites' VectorWriter path: one
// WriteBuffer-equivalent request standing in for every queued entry,
// so pendingWriteReqs tracks it as a single in-flight write and every
// entry's callback fires with that write's shared terminal status.
func (s *Socket) submitWriteBatch(vw VectorWriter, queue []queuedWrite) {
	bufs := make([][]byte, len(queue))
	cbs := make([]func(error), len(queue))
	for i, qw := range queue {
		bufs[i] = qw.buf
		cbs[i] = qw.cb
	}
	atomic.AddInt32(&s.pendingWriteReqs, 1)
	req, err := vw.WriteVectored(bufs)
	if err != nil {
		atomic.AddInt32(&s.pendingWriteReqs, -1)
		for _, cb := range cbs {
			if cb != nil {
				cb(err)
			}
		}
		s.Destroy(newError(KindTransport, err))
		return
	}
	req.OnComplete = s.writeCompletion(cbs)
}

// writeCompletion builds the OnComplete closure shared by a single
// write and a batched write: bumps the inactivity timer, fans the
// terminal status out to every queued callback, destroys on error,
// and emits "drain" once no writes remain in flight.
func (s *Socket) writeCompletion(cbs []func(error)) func(error) {
	return func(status error) {
		s.mu.Lock()
		destroyed := s.flags.Has(FlagDestroyed)
		s.mu.Unlock()
		if destroyed {
			return
		}
		left := atomic.AddInt32(&s.pendingWriteReqs, -1)
		s.timer.Bump()
		for _, cb := range cbs {
			if cb != nil {
				cb(status)
			}
		}
		if status != nil {
			s.Destroy(newError(KindTransport, status))
			return
		}
		if left == 0 {
			s.Emit("drain")
		}
		s.maybeFinishDestroySoon()
	}
}

// End optionally writes a final chunk of data, then clears WRITABLE
// and either destroys (if the read side is already closed) or issues
// a half-close shutdown.
func (s *Socket) End(data []byte) bool {
	s.mu.Lock()
	if s.flags.Has(FlagDestroyed) {
		s.mu.Unlock()
		return false
	}
	if s.flags.Has(FlagConnecting) {
		s.flags.Set(FlagShutdownQueued)
		s.mu.Unlock()
		if len(data) > 0 {
			s.Write(data, nil)
		}
		return true
	}
	if !s.flags.Has(FlagWritable) {
		s.mu.Unlock()
		return false
	}
	readable := s.flags.Has(FlagReadable)
	s.flags.Clear(FlagWritable)
	s.bytesDispatched += int64(len(data))
	s.mu.Unlock()

	if len(data) > 0 {
		s.submitWrite(data, nil)
	}

	if !readable {
		s.destroySoonLocked()
		return true
	}

	s.mu.Lock()
	s.flags.Set(FlagShutdown)
	s.mu.Unlock()

	h := s.currentHandle()
	if h == nil {
		s.Destroy(nil)
		return true
	}
	req, err := h.Shutdown()
	if err != nil {
		s.Destroy(newError(KindTransport, err))
		return true
	}
	req.OnComplete = func(status error) {
		s.mu.Lock()
		gotEOF := s.flags.Has(FlagGotEOF)
		stillReadable := s.flags.Has(FlagReadable)
		s.mu.Unlock()
		if status != nil {
			s.Destroy(newError(KindTransport, status))
			return
		}
		if gotEOF || !stillReadable {
			s.Destroy(nil)
		}
	}
	return true
}

// DestroySoon clears WRITABLE and sets DESTROY_SOON; destroys
// immediately if there are no writes in flight.
func (s *Socket) DestroySoon() {
	s.mu.Lock()
	s.flags.Clear(FlagWritable)
	s.flags.Set(FlagDestroySoon)
	s.mu.Unlock()
	s.maybeFinishDestroySoon()
}

func (s *Socket) destroySoonLocked() {
	s.mu.Lock()
	s.flags.Set(FlagDestroySoon)
	s.mu.Unlock()
	s.maybeFinishDestroySoon()
}

func (s *Socket) maybeFinishDestroySoon() {
	s.mu.Lock()
	if !s.flags.Has(FlagDestroySoon) || s.flags.Has(FlagDestroyed) {
		s.mu.Unlock()
		return
	}
	pending := atomic.LoadInt32(&s.pendingWriteReqs)
	s.mu.Unlock()
	if pending == 0 {
		s.Destroy(nil)
	}
}

// Pause sets PAUSED and requests a read-stop on the handle. Bytes the
// handle still delivers after that are passed on as usual; onReadData
// does not hold them back while PAUSED.
func (s *Socket) Pause() {
	s.mu.Lock()
	if s.flags.Has(FlagPaused) {
		s.mu.Unlock()
		return
	}
	s.flags.Set(FlagPaused)
	h := s.handle
	s.mu.Unlock()
	if h != nil {
		h.ReadStop()
	}
}

// Resume clears PAUSED and requests a read-start on the handle.
func (s *Socket) Resume() {
	s.mu.Lock()
	if !s.flags.Has(FlagPaused) {
		s.mu.Unlock()
		return
	}
	s.flags.Clear(FlagPaused)
	connecting := s.flags.Has(FlagConnecting)
	s.mu.Unlock()
	if !connecting {
		s.startReading()
	}
}

// Destroy is the universal cancellation path: closes the handle,
// clears READABLE/WRITABLE, sets DESTROYED, invokes the optional
// per-call callback, then schedules "error" (if err is non-nil and
// not already emitted) followed by "close" on the next tick.
func (s *Socket) Destroy(err error) bool {
	s.mu.Lock()
	if s.flags.Has(FlagDestroyed) {
		s.mu.Unlock()
		return false
	}
	s.flags.Set(FlagDestroyed)
	s.flags.Clear(FlagReadable | FlagWritable)
	h := s.handle
	s.handle = nil
	alreadyEmitted := s.flags.Has(FlagErrorEmitted)
	if err != nil {
		s.flags.Set(FlagErrorEmitted)
	}
	cb := s.destroyCb
	s.mu.Unlock()

	s.timer.Stop()
	if h != nil {
		h.Close()
	}
	if cb != nil {
		cb(err)
	}

	s.ticks.ScheduleNextTick(func() {
		if err != nil && !alreadyEmitted {
			s.Emit("error", err)
		}
		s.Emit("close", err != nil)
	})
	return true
}

// destroyQuiet is the ECONNRESET path: destroy without ever emitting
// "error".
func (s *Socket) destroyQuiet() bool {
	s.mu.Lock()
	if s.flags.Has(FlagDestroyed) {
		s.mu.Unlock()
		return false
	}
	s.flags.Set(FlagDestroyed | FlagErrorEmitted)
	s.flags.Clear(FlagReadable | FlagWritable)
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	s.timer.Stop()
	if h != nil {
		h.Close()
	}
	s.ticks.ScheduleNextTick(func() {
		s.Emit("close", false)
	})
	return true
}

// SetTimeout arms (d == 0 disarms) the inactivity timer. If onTimeout
// is non-nil it is added as a "timeout" listener; passing the same
// onTimeout again with d == 0 removes exactly that listener (identity
// is tracked via timeoutListener, since the wrapping closure that
// adapts onTimeout's signature to Listener would otherwise never
// compare equal to itself across calls).
func (s *Socket) SetTimeout(d time.Duration, onTimeout func()) {
	s.timer.Set(d)
	if onTimeout == nil {
		return
	}
	if d == 0 {
		if s.timeoutListener != nil {
			s.RemoveListener("timeout", s.timeoutListener)
			s.timeoutListener = nil
		}
		return
	}
	listener := func(args ...interface{}) { onTimeout() }
	s.timeoutListener = listener
	s.On("timeout", listener)
}

// SetEncoding installs (or, for EncodingNone, clears) the string
// decoder applied to subsequent read buffers.
func (s *Socket) SetEncoding(enc Encoding) bool {
	_, ok := ParseEncoding(encodingName(enc))
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		s.decoder = nil
		return false
	}
	if enc == EncodingNone {
		s.decoder = nil
		return true
	}
	s.decoder = newStringDecoder(enc)
	return true
}

func (s *Socket) SetNoDelay(v bool) error {
	h := s.currentHandle()
	if h == nil {
		return ErrNoHandle
	}
	return h.SetNoDelay(v)
}

func (s *Socket) SetKeepAlive(v bool, delay time.Duration) error {
	h := s.currentHandle()
	if h == nil {
		return ErrNoHandle
	}
	return h.SetKeepAlive(v, delay)
}

func (s *Socket) Address() (string, int, bool) {
	h := s.currentHandle()
	if h == nil {
		return "", -1, false
	}
	return h.LocalAddr()
}

func (s *Socket) RemoteAddress() (string, bool) {
	h := s.currentHandle()
	if h == nil {
		return "", false
	}
	ip, _, ok := h.RemoteAddr()
	return ip, ok
}

func (s *Socket) RemotePort() (int, bool) {
	h := s.currentHandle()
	if h == nil {
		return -1, false
	}
	_, port, ok := h.RemoteAddr()
	return port, ok
}

func (s *Socket) BytesRead() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesRead
}

// BytesWritten includes bytes still sitting in the pre-connect queue.
func (s *Socket) BytesWritten() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesDispatched
}

// BufferSize returns the number of bytes still queued ahead of
// Connect's completion, waiting to be replayed once the handle comes
// up.
func (s *Socket) BufferSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectQueueSize
}

func (s *Socket) Ref() {
	if h := s.currentHandle(); h != nil {
		h.Ref()
	}
}

func (s *Socket) Unref() {
	if h := s.currentHandle(); h != nil {
		h.Unref()
	}
}

// AttachParser installs the HttpParser back-reference, non-owning.
func (s *Socket) AttachParser(p *HttpParser) {
	s.mu.Lock()
	s.parser = p
	s.mu.Unlock()
}

// DetachParser severs the Socket->Parser back-reference; called from
// HttpParser.Free as part of the keep-alive/upgrade handoff.
func (s *Socket) DetachParser() {
	s.mu.Lock()
	s.parser = nil
	s.mu.Unlock()
}

func (s *Socket) Flags() FlagSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

func encodingName(e Encoding) string {
	switch e {
	case EncodingUTF8:
		return "utf8"
	case EncodingUTF16BE:
		return "utf16be"
	case EncodingUTF16LE:
		return "utf16le"
	case EncodingUTF32BE:
		return "utf32be"
	case EncodingUTF32LE:
		return "utf32le"
	case EncodingHex:
		return "hex"
	case EncodingNone:
		return "none"
	default:
		return "unsupported"
	}
}

