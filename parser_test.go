package evnet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHttpParserParsesRequestWithHeadersAndBody(t *testing.T) {
	p := NewHttpParser(ParserRequest, nil, 0)

	var got *IncomingMessage
	var body []byte
	var ended bool
	p.SetOnIncoming(func(msg *IncomingMessage, keepAlive bool) bool {
		got = msg
		msg.On("data", func(args ...interface{}) { body = append(body, args[0].([]byte)...) })
		msg.On("end", func(...interface{}) { ended = true })
		return false
	})

	raw := "POST /submit HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Content-Length: 5\r\n" +
		"\r\n" +
		"hello"

	n, err := p.Execute([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, len(raw), n)

	require.NotNil(t, got)
	require.Equal(t, "POST", got.Method)
	require.Equal(t, "/submit", got.URL)
	require.Equal(t, "1.1", got.HTTPVersion)
	require.Equal(t, "example.com", got.Headers.Get("Host"))
	require.True(t, got.KeepAlive)
	require.True(t, ended)
	require.Equal(t, "hello", string(body))
	require.True(t, got.Complete())
}

func TestHttpParserDispatchesWhenBufferEndsExactlyAtHeaderTerminator(t *testing.T) {
	p := NewHttpParser(ParserRequest, nil, 0)
	var got *IncomingMessage
	p.SetOnIncoming(func(msg *IncomingMessage, keepAlive bool) bool {
		got = msg
		return false
	})

	raw := "GET /x HTTP/1.1\r\nHost: h\r\n\r\n"
	n, err := p.Execute([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, len(raw), n)
	require.NotNil(t, got, "headers-complete must fire on the terminating blank line without a following byte")
	require.Equal(t, "/x", got.URL)
}

func TestHttpParserAccumulatesMultiChunkHeaderFieldAndValue(t *testing.T) {
	p := NewHttpParser(ParserRequest, nil, 0)
	var got *IncomingMessage
	p.SetOnIncoming(func(msg *IncomingMessage, keepAlive bool) bool {
		got = msg
		return false
	})

	raw := "GET / HTTP/1.1\r\n" +
		"X-Long: par"
	n1, err := p.Execute([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, len(raw), n1)
	require.Nil(t, got, "headers-complete must not fire mid-header")

	rest := "t1\r\nContent-Length: 0\r\n\r\n"
	_, err = p.Execute([]byte(rest))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "part1", got.Headers.Get("X-Long"))
}

func TestHttpParserFlushesTrailersAfterChunkedBody(t *testing.T) {
	p := NewHttpParser(ParserRequest, nil, 0)
	var got *IncomingMessage
	p.SetOnIncoming(func(msg *IncomingMessage, keepAlive bool) bool {
		got = msg
		return false
	})

	raw := "POST /upload HTTP/1.1\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		"5\r\nhello\r\n" +
		"0\r\n" +
		"X-Checksum: abc123\r\n" +
		"\r\n"

	_, err := p.Execute([]byte(raw))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "abc123", got.Headers.Get("X-Checksum"))
	require.True(t, got.Complete())
}

func TestHttpParserPipelinedMessagesEachDispatchSeparately(t *testing.T) {
	p := NewHttpParser(ParserRequest, nil, 0)
	var urls []string
	p.SetOnIncoming(func(msg *IncomingMessage, keepAlive bool) bool {
		urls = append(urls, msg.URL)
		return false
	})

	raw := "GET /a HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n" +
		"GET /b HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n"

	n, err := p.Execute([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, len(raw), n)
	require.Equal(t, []string{"/a", "/b"}, urls)
}

func TestHttpParserMaxHeadersCountCapsCopiedPairs(t *testing.T) {
	p := NewHttpParser(ParserRequest, nil, 1)
	var got *IncomingMessage
	p.SetOnIncoming(func(msg *IncomingMessage, keepAlive bool) bool {
		got = msg
		return false
	})

	raw := "GET / HTTP/1.1\r\nA: 1\r\nB: 2\r\nContent-Length: 0\r\n\r\n"
	_, err := p.Execute([]byte(raw))
	require.NoError(t, err)
	require.Len(t, got.Headers, 1)
}

func TestHttpParserMalformedStartLineReturnsParseError(t *testing.T) {
	p := NewHttpParser(ParserRequest, nil, 0)
	var reportedErr error
	p.SetOnParseError(func(err error) { reportedErr = err })

	_, err := p.Execute([]byte("BAD REQUEST LINE\r\n\r\n"))
	require.Error(t, err)
	require.Equal(t, err, reportedErr)

	var evErr *Error
	require.ErrorAs(t, err, &evErr)
	require.Equal(t, KindParseError, evErr.Kind)
}

func TestHttpParserAttachedToSocketReceivesBytesThroughOnReadData(t *testing.T) {
	s, h := newConnectedSocket(t)
	p := NewHttpParser(ParserRequest, s, 0)

	var got *IncomingMessage
	p.SetOnIncoming(func(msg *IncomingMessage, keepAlive bool) bool {
		got = msg
		return false
	})

	var received []string
	s.On("data", func(args ...interface{}) {
		received = append(received, string(args[0].([]byte)))
	})

	h.feed([]byte("GET /hot-path HTTP/1.1\r\nHost: h\r\nContent-Length: 0\r\n\r\n"))

	require.Eventually(t, func() bool { return got != nil }, time.Second, time.Millisecond)
	require.Equal(t, "/hot-path", got.URL)
	require.Empty(t, received, "bytes routed to an attached parser must not also surface as raw socket \"data\" events")
}

func TestHttpParserFreeDetachesFromSocketAndReturnsOnIncoming(t *testing.T) {
	s, h := newConnectedSocket(t)
	p := NewHttpParser(ParserRequest, s, 0)

	sinkCalled := false
	p.SetOnIncoming(func(msg *IncomingMessage, keepAlive bool) bool {
		sinkCalled = true
		return false
	})

	returned := p.Free()
	require.NotNil(t, returned, "Free must hand the installed onIncoming sink back to the caller")

	var received []string
	s.On("data", func(args ...interface{}) {
		received = append(received, string(args[0].([]byte)))
	})

	h.feed([]byte("raw upgraded stream"))

	require.Eventually(t, func() bool { return len(received) == 1 }, time.Second, time.Millisecond)
	require.False(t, sinkCalled, "once detached the socket must stop routing bytes through the freed parser")
	require.Equal(t, "raw upgraded stream", received[0])
}

func TestHttpParserResponseParsesStatusCode(t *testing.T) {
	p := NewHttpParser(ParserResponse, nil, 0)
	var got *IncomingMessage
	p.SetOnIncoming(func(msg *IncomingMessage, keepAlive bool) bool {
		got = msg
		return false
	})

	raw := "HTTP/1.1 204 No Content\r\nConnection: close\r\n\r\n"
	_, err := p.Execute([]byte(raw))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 204, got.StatusCode)
	require.False(t, got.KeepAlive)
}
