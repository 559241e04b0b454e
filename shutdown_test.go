package evnet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSocketWaitClosedReturnsAfterDestroy(t *testing.T) {
	s, _ := newConnectedSocket(t)

	done := make(chan error, 1)
	go func() {
		done <- s.WaitClosed(context.Background())
	}()

	s.Destroy(nil)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitClosed never returned")
	}
}

func TestSocketWaitClosedRespectsContextDeadline(t *testing.T) {
	s := NewSocket(nil)
	s.SetDialer(&fakeDialer{handle: newFakeHandle()})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := s.WaitClosed(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseAllClosesEverySocket(t *testing.T) {
	s1, h1 := newConnectedSocket(t)
	s2, h2 := newConnectedSocket(t)

	err := CloseAll(context.Background(), s1, s2)
	require.NoError(t, err)

	require.True(t, s1.Flags().Has(FlagDestroyed))
	require.True(t, s2.Flags().Has(FlagDestroyed))
	h1.mu.Lock()
	require.True(t, h1.closed)
	h1.mu.Unlock()
	h2.mu.Lock()
	require.True(t, h2.closed)
	h2.mu.Unlock()
}
