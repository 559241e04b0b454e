package evnet

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WaitClosed blocks until sock's "close" event fires (emitted on the
// tick Destroy/destroyQuiet schedules after closing the handle; write
// completions still in flight at that point are not waited for) or
// ctx is done, whichever happens first. A "close" that fired before
// WaitClosed was called is not seen, so the call then waits for ctx.
func (s *Socket) WaitClosed(ctx context.Context) error {
	done := make(chan struct{})
	s.Once("close", func(...interface{}) { close(done) })

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-done:
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})
	return g.Wait()
}

// CloseAll destroys every socket in sockets concurrently and waits for
// all of them to finish closing ("close" emitted) or for ctx to expire,
// whichever comes first. The returned error is the first non-nil
// result across the group, per errgroup.Group semantics; a deadline
// exceeded for one socket does not stop the others from closing.
func CloseAll(ctx context.Context, sockets ...*Socket) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sock := range sockets {
		sock := sock
		g.Go(func() error {
			// Listen before destroying: "close" is emitted on the tick
			// queue's goroutine and may fire before Destroy returns.
			closed := make(chan struct{})
			sock.Once("close", func(...interface{}) { close(closed) })
			sock.Destroy(nil)
			select {
			case <-closed:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}
