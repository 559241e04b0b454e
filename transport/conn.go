// Package transport provides the concrete StreamHandle, Dialer, and
// Resolver adapters evnet's Socket depends on as external
// collaborators: Conn wraps a net.Conn (TCP or Unix-domain "pipe"),
// TCPDialer opens one by dialing host:port, and StdResolver wraps
// net.Resolver. Socket never imports net directly — only this
// package and the evnet.StreamHandle/evnet.Dialer/evnet.Resolver
// interfaces it implements.
//
// TCP-specific knobs (SetNoDelay/SetKeepAlive) are adapted from
// badu-http's tcp_keep_alive_listener.go, generalized from a
// listener-level Accept hook to a per-connection method pair.
package transport

import (
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/sagernet/sing/common/bufio"

	"github.com/nodecore/evnet"
)

// mapReadError translates a raw net.Conn.Read error into evnet's
// sentinel for a peer-initiated reset, so Socket.onReadError can route
// it to the quiet-destroy path instead of emitting "error".
func mapReadError(err error) error {
	if errors.Is(err, syscall.ECONNRESET) {
		return evnet.ErrECONNRESET
	}
	return err
}

// Conn adapts a net.Conn to evnet.StreamHandle.
type Conn struct {
	nc       net.Conn
	kind     evnet.HandleType
	readBuf  []byte
	stopRead chan struct{}
	reading  bool
}

// New wraps nc. kind distinguishes TCP (address/port, NoDelay,
// KeepAlive all apply) from a pipe (Unix-domain socket or named pipe),
// where those calls are no-ops.
func New(nc net.Conn, kind evnet.HandleType) *Conn {
	return &Conn{nc: nc, kind: kind, readBuf: make([]byte, 64*1024)}
}

// Dial opens a new outbound connection, the concrete counterpart of
// StreamHandle.connect(addr, port) / connect(path).
func Dial(network, address string) (*Conn, error) {
	nc, err := net.Dial(network, address)
	if err != nil {
		return nil, err
	}
	kind := evnet.HandleTCP
	if network == "unix" {
		kind = evnet.HandlePipe
	}
	return New(nc, kind), nil
}

// TCPDialer is the net.Dialer-backed evnet.Dialer. A Socket has no
// dialer until one is installed with Socket.SetDialer; once installed,
// Socket.Connect(host, port) resolves host through its Resolver (when
// one is installed) and hands the resulting address to Dial here.
type TCPDialer struct {
	// Timeout bounds the TCP handshake; zero means net.Dial's default
	// (no deadline).
	Timeout time.Duration
}

// NewTCPDialer returns a TCPDialer with no connect timeout.
func NewTCPDialer() *TCPDialer { return &TCPDialer{} }

func (d *TCPDialer) Dial(addr string, port int) (evnet.StreamHandle, error) {
	address := net.JoinHostPort(addr, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: d.Timeout}
	nc, err := dialer.Dial("tcp", address)
	if err != nil {
		return nil, err
	}
	return New(nc, evnet.HandleTCP), nil
}

var _ evnet.Dialer = (*TCPDialer)(nil)

func (c *Conn) ReadStart(onData func(buf []byte), onError func(err error)) {
	if c.reading {
		return
	}
	c.reading = true
	c.stopRead = make(chan struct{})
	go func() {
		stop := c.stopRead
		for {
			select {
			case <-stop:
				return
			default:
			}
			n, err := c.nc.Read(c.readBuf)
			if n > 0 {
				buf := make([]byte, n)
				copy(buf, c.readBuf[:n])
				onData(buf)
			}
			if err != nil {
				onError(mapReadError(err))
				return
			}
		}
	}()
}

func (c *Conn) ReadStop() {
	if !c.reading {
		return
	}
	c.reading = false
	close(c.stopRead)
}

func (c *Conn) WriteBuffer(buf []byte) (*evnet.WriteRequest, error) {
	req := &evnet.WriteRequest{Bytes: len(buf)}
	go func() {
		_, err := c.nc.Write(buf)
		if req.OnComplete != nil {
			req.OnComplete(err)
		}
	}()
	return req, nil
}

// WriteVectored batches bufs into a single vectorised write via
// sagernet/sing's common/bufio helper (the same API SagerNet-smux's
// sendLoop uses for its own queued frame writes), falling back to
// sequential net.Conn.Write calls when the underlying net.Conn doesn't
// support vectorised I/O.
func (c *Conn) WriteVectored(bufs [][]byte) (*evnet.WriteRequest, error) {
	total := 0
	for _, b := range bufs {
		total += len(b)
	}
	req := &evnet.WriteRequest{Bytes: total}
	go func() {
		var err error
		if vw, ok := bufio.CreateVectorisedWriter(c.nc); ok {
			_, err = bufio.WriteVectorised(vw, bufs)
		} else {
			for _, b := range bufs {
				if _, werr := c.nc.Write(b); werr != nil {
					err = werr
					break
				}
			}
		}
		if req.OnComplete != nil {
			req.OnComplete(err)
		}
	}()
	return req, nil
}

func (c *Conn) Shutdown() (*evnet.ShutdownRequest, error) {
	type closeWriter interface{ CloseWrite() error }
	cw, ok := c.nc.(closeWriter)
	if !ok {
		return nil, errors.New("transport: handle does not support half-close")
	}
	req := &evnet.ShutdownRequest{}
	go func() {
		err := cw.CloseWrite()
		if req.OnComplete != nil {
			req.OnComplete(err)
		}
	}()
	return req, nil
}

func (c *Conn) Close() error {
	if c.reading {
		c.ReadStop()
	}
	return c.nc.Close()
}

// Ref/Unref influence event-loop keep-alive for the underlying handle;
// this module has no process-wide loop handle count to decrement, so
// these are intentionally no-ops — see SPEC_FULL.md.
func (c *Conn) Ref()   {}
func (c *Conn) Unref() {}

func (c *Conn) SetNoDelay(enabled bool) error {
	if tc, ok := c.nc.(*net.TCPConn); ok {
		return tc.SetNoDelay(enabled)
	}
	return nil
}

func (c *Conn) SetKeepAlive(enabled bool, delay time.Duration) error {
	tc, ok := c.nc.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tc.SetKeepAlive(enabled); err != nil {
		return err
	}
	if enabled && delay > 0 {
		return tc.SetKeepAlivePeriod(delay)
	}
	return nil
}

func (c *Conn) LocalAddr() (string, int, bool)  { return splitAddr(c.nc.LocalAddr(), c.kind) }
func (c *Conn) RemoteAddr() (string, int, bool) { return splitAddr(c.nc.RemoteAddr(), c.kind) }

func splitAddr(a net.Addr, kind evnet.HandleType) (string, int, bool) {
	if kind != evnet.HandleTCP || a == nil {
		return "", -1, false
	}
	tcpAddr, ok := a.(*net.TCPAddr)
	if !ok {
		return "", -1, false
	}
	return tcpAddr.IP.String(), tcpAddr.Port, true
}

func (c *Conn) Type() evnet.HandleType { return c.kind }

var _ evnet.VectorWriter = (*Conn)(nil)
