package evnet

import (
	"github.com/nodecore/evnet/internal/wireparser"
)

// ParserKind selects which half of HTTP/1.x a HttpParser decodes.
type ParserKind = wireparser.Kind

const (
	ParserRequest  = wireparser.Request
	ParserResponse = wireparser.Response
)

var canonicalMethods = map[string]struct{}{
	"GET": {}, "HEAD": {}, "POST": {}, "PUT": {}, "DELETE": {}, "CONNECT": {},
	"OPTIONS": {}, "TRACE": {}, "COPY": {}, "LOCK": {}, "MKCOL": {}, "MOVE": {},
	"PROPFIND": {}, "PROPPATCH": {}, "SEARCH": {}, "UNLOCK": {},
}

// HttpParser wraps the incremental byte scanner from internal/wireparser
// and drives the accumulation rule: fields[] and values[] are parallel
// ordered sequences, growing by at most 1 in length difference while a
// header line is mid-flight (a field name read but its value not yet
// begun). onIncoming is invoked once per message, on headers-complete.
type HttpParser struct {
	kind            ParserKind
	socket          *Socket
	maxHeadersCount int
	onIncoming      func(msg *IncomingMessage, shouldKeepAlive bool) bool
	onParseError    func(err error)

	scanner *wireparser.Scanner

	url    []byte
	fields [][]byte
	values [][]byte

	current     *IncomingMessage
	headerCount int // len(fields) as of this message's onHeadersComplete; trailers accumulate past this index
}

// NewHttpParser constructs a parser of the given kind bound to sock.
// maxHeadersCount == 0 means "no cap".
func NewHttpParser(kind ParserKind, sock *Socket, maxHeadersCount int) *HttpParser {
	p := &HttpParser{kind: kind, socket: sock, maxHeadersCount: maxHeadersCount}
	p.scanner = wireparser.New(kind, wireparser.Settings{
		OnMessageBegin:    p.onMessageBegin,
		OnURL:             p.onURL,
		OnHeaderField:     p.onHeaderField,
		OnHeaderValue:     p.onHeaderValue,
		OnHeadersComplete: p.onHeadersComplete,
		OnBody:            p.onBody,
		OnMessageComplete: p.onMessageComplete,
	})
	if sock != nil {
		sock.AttachParser(p)
	}
	return p
}

// SetOnIncoming installs the sink invoked once headers are complete.
func (p *HttpParser) SetOnIncoming(fn func(msg *IncomingMessage, shouldKeepAlive bool) bool) {
	p.onIncoming = fn
}

// SetOnParseError installs a diagnostic sink invoked with the
// malformed-message error Execute returns, before that error reaches
// the socket's destroy path. Optional; nil (the default) skips it.
func (p *HttpParser) SetOnParseError(fn func(err error)) {
	p.onParseError = fn
}

func (p *HttpParser) onMessageBegin() {
	p.url = p.url[:0]
	p.fields = p.fields[:0]
	p.values = p.values[:0]
}

func (p *HttpParser) onURL(chunk []byte) {
	p.url = append(p.url, chunk...)
}

func (p *HttpParser) onHeaderField(chunk []byte) {
	if len(p.fields) == len(p.values) {
		buf := make([]byte, len(chunk))
		copy(buf, chunk)
		p.fields = append(p.fields, buf)
		return
	}
	tail := len(p.fields) - 1
	p.fields[tail] = append(p.fields[tail], chunk...)
}

func (p *HttpParser) onHeaderValue(chunk []byte) {
	if len(p.values) < len(p.fields) {
		p.values = append(p.values, append([]byte(nil), chunk...))
		return
	}
	tail := len(p.values) - 1
	p.values[tail] = append(p.values[tail], chunk...)
}

// onHeadersComplete allocates the IncomingMessage, copies at most
// maxHeadersCount header pairs (0 = no cap) preserving order, and
// hands it to onIncoming. The returned bool tells the scanner whether
// to skip the body: true iff onIncoming said so, unless this is an
// upgrade, which always skips.
func (p *HttpParser) onHeadersComplete() bool {
	msg := newIncomingMessage(p.socket)
	msg.HTTPMajor = p.scanner.HTTPMajor
	msg.HTTPMinor = p.scanner.HTTPMinor
	msg.HTTPVersion = formatVersion(msg.HTTPMajor, msg.HTTPMinor)
	msg.Upgrade = p.scanner.Upgrade

	if p.kind == ParserRequest {
		msg.Method = canonicalMethod(p.scanner.Method)
		msg.URL = string(p.url)
	} else {
		msg.StatusCode = p.scanner.StatusCode
	}

	n := len(p.fields)
	if p.maxHeadersCount > 0 && n > p.maxHeadersCount {
		n = p.maxHeadersCount
	}
	msg.Headers = make(HeaderPairs, n)
	for i := 0; i < n; i++ {
		var v []byte
		if i < len(p.values) {
			v = p.values[i]
		}
		msg.Headers[i] = HeaderPair{Name: canonicalHeaderName(string(p.fields[i])), Value: string(v)}
	}

	shouldKeepAlive := p.scanner.ShouldKeepAlive()
	msg.KeepAlive = shouldKeepAlive

	p.headerCount = len(p.fields)
	p.current = msg

	skip := false
	if p.onIncoming != nil {
		skip = p.onIncoming(msg, shouldKeepAlive)
	}
	return skip || msg.Upgrade
}

func (p *HttpParser) onBody(chunk []byte) {
	if p.current == nil {
		return
	}
	p.current.deliverBody(chunk)
}

// onMessageComplete flushes any trailing header pairs the trailer
// scan accumulated, marks the message COMPLETE, delivers EOF unless
// this was an upgrade, and resumes the socket so a pipelined next
// message can proceed.
func (p *HttpParser) onMessageComplete() {
	msg := p.current
	if msg == nil {
		return
	}
	p.current = nil
	if len(p.fields) > p.headerCount {
		for i := p.headerCount; i < len(p.fields); i++ {
			var v []byte
			if i < len(p.values) {
				v = p.values[i]
			}
			msg.Headers = append(msg.Headers, HeaderPair{Name: canonicalHeaderName(string(p.fields[i])), Value: string(v)})
		}
	}
	msg.markComplete()
	if !msg.Upgrade {
		msg.deliverEOF()
	}
	if p.socket != nil && p.socket.flags.Has(FlagReadable) {
		p.socket.Resume()
	}
}

// Execute feeds buf to the parser, looping across pipelined messages
// (wireparser.Scanner.Done()/Reset()) so a single buffer containing
// several back-to-back messages yields each one distinctly and in
// order. Returns the number of bytes consumed and an error if the
// byte stream does not match a well-formed HTTP/1.x message.
func (p *HttpParser) Execute(buf []byte) (int, error) {
	total := 0
	for {
		n, err := p.scanner.Execute(buf[total:])
		total += n
		if err != nil {
			wrapped := newError(KindParseError, err)
			if p.onParseError != nil {
				p.onParseError(wrapped)
			}
			return total, wrapped
		}
		if total >= len(buf) {
			return total, nil
		}
		if p.scanner.Done() {
			p.scanner.Reset()
			continue
		}
		return total, nil
	}
}

// Finish flushes the parser with zero additional bytes, for
// EOF-terminated responses with neither Content-Length nor chunked
// framing.
func (p *HttpParser) Finish() bool {
	return p.scanner.Finish()
}

// Free detaches the parser from its socket ("keep-alive handoff" for
// upgrade/CONNECT): it severs the Socket's back-reference so
// onReadData stops routing bytes through this parser, and hands back
// the onIncoming sink that was installed via SetOnIncoming so the
// caller can take ownership of the raw byte stream from here on.
// onIncoming is this design's analogue of the onData/onEnd hook pair:
// IncomingMessage itself owns "data"/"end" emission once dispatched,
// so the one hook the parser holds upstream of that is the dispatch
// sink, not a split read/end callback pair.
func (p *HttpParser) Free() (onIncoming func(msg *IncomingMessage, shouldKeepAlive bool) bool) {
	if p.socket != nil {
		p.socket.DetachParser()
	}
	onIncoming = p.onIncoming
	p.socket = nil
	p.current = nil
	p.onIncoming = nil
	return onIncoming
}

func canonicalMethod(m string) string {
	if _, ok := canonicalMethods[m]; ok {
		return m
	}
	return ""
}

func formatVersion(major, minor int) string {
	if major == 1 && minor == 1 {
		return "1.1"
	}
	buf := make([]byte, 0, 3)
	buf = append(buf, byte('0'+major), '.', byte('0'+minor))
	return string(buf)
}
