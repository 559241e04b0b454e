package evnet

// pendingBody is one entry in an IncomingMessage's pendings queue: a
// body chunk, or (when buf == nil && eof) the end-of-stream sentinel.
type pendingBody struct {
	buf []byte
	eof bool
}

// IncomingMessage is a readable byte stream coupled back to the
// Socket that produced it — the materialized form of one HTTP/1.x
// request or response, handed to the HttpParser's onIncoming sink on
// headers-complete. Grounded on badu-http's types_request.go /
// types_response.go, generalized to carry an ordered, duplicate
// preserving header list instead of a net/http-shaped Header map, and
// to queue body chunks while paused instead of relying on a blocking
// io.Reader.
type IncomingMessage struct {
	*EventEmitter

	Socket *Socket

	HTTPMajor, HTTPMinor int
	HTTPVersion          string

	Method     string // requests only; empty for responses and unknown methods
	URL        string // requests only
	StatusCode int    // responses only

	Headers HeaderPairs

	// KeepAlive records whether the connection that produced this
	// message should remain open afterward — surfaced on the message
	// itself (rather than forcing callers back through the Socket) so
	// handlers can decide connection reuse without reaching past the
	// message they were handed.
	KeepAlive bool

	Upgrade bool

	flags FlagSet

	pendings []pendingBody

	decoder *stringDecoder
}

// msgComplete reuses the Socket's FlagSet bit space since READABLE and
// PAUSED mean the same thing here; this is the one message-only bit.
const msgComplete FlagSet = 1 << 20

func newIncomingMessage(sock *Socket) *IncomingMessage {
	m := &IncomingMessage{
		EventEmitter: NewEventEmitter(),
		Socket:       sock,
		flags:        FlagReadable,
	}
	return m
}

// Complete reports whether MESSAGE_COMPLETE has fired for this message.
func (m *IncomingMessage) Complete() bool { return m.flags.Has(msgComplete) }

func (m *IncomingMessage) markComplete() { m.flags.Set(msgComplete) }

// Paused reports whether the consumer has called Pause without a
// matching Resume.
func (m *IncomingMessage) Paused() bool { return m.flags.Has(FlagPaused) }

// Pause stops delivering "data" events and also pauses the underlying
// Socket, so the transport stops reading ahead of the consumer.
func (m *IncomingMessage) Pause() {
	if m.flags.Has(FlagPaused) {
		return
	}
	m.flags.Set(FlagPaused)
	if m.Socket != nil {
		m.Socket.Pause()
	}
}

// Resume clears PAUSED, drains any queued body buffers in order (each
// buffer emits "data"; the EOF sentinel clears READABLE and emits
// "end"), then resumes the Socket so pipelined messages continue.
func (m *IncomingMessage) Resume() {
	if !m.flags.Has(FlagPaused) {
		return
	}
	m.flags.Clear(FlagPaused)
	pending := m.pendings
	m.pendings = nil
	for _, p := range pending {
		if p.eof {
			m.flags.Clear(FlagReadable)
			m.Emit("end")
			continue
		}
		m.emitData(p.buf)
	}
	if m.Socket != nil {
		m.Socket.Resume()
	}
}

// deliverBody is HttpParser's BODY(chunk) callback target: queues the
// chunk if paused or if pendings are already non-empty (preserving
// order), otherwise emits "data" immediately.
func (m *IncomingMessage) deliverBody(chunk []byte) {
	if m.flags.Has(FlagPaused) || len(m.pendings) > 0 {
		buf := make([]byte, len(chunk))
		copy(buf, chunk)
		m.pendings = append(m.pendings, pendingBody{buf: buf})
		return
	}
	m.emitData(chunk)
}

func (m *IncomingMessage) emitData(buf []byte) {
	if m.decoder != nil {
		m.Emit("data", m.decoder.Decode(buf))
		return
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	m.Emit("data", out)
}

// deliverEOF is HttpParser's MESSAGE_COMPLETE handler for the
// non-upgrade case: queue the EOF sentinel if paused/pending,
// otherwise clear READABLE and emit "end" right away.
func (m *IncomingMessage) deliverEOF() {
	if m.flags.Has(FlagPaused) || len(m.pendings) > 0 {
		m.pendings = append(m.pendings, pendingBody{eof: true})
		return
	}
	m.flags.Clear(FlagReadable)
	m.Emit("end")
}

// SetEncoding installs a decoder on this message only, independent of
// whatever the owning Socket is configured with.
func (m *IncomingMessage) SetEncoding(enc Encoding) {
	if enc == EncodingNone {
		m.decoder = nil
		return
	}
	m.decoder = newStringDecoder(enc)
}
