package orchestrator

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeRecorder struct {
	closed atomic.Bool
}

func (c *closeRecorder) Close() error {
	c.closed.Store(true)
	return nil
}

func TestAwaitDialReturnsConnection(t *testing.T) {
	conn := &closeRecorder{}

	got, err := awaitDial(context.Background(), func() (io.Closer, error) {
		return conn, nil
	})
	require.NoError(t, err)
	assert.Same(t, conn, got)
	assert.False(t, conn.closed.Load())
}

func TestAwaitDialPropagatesDialError(t *testing.T) {
	dialErr := errors.New("connection refused")

	_, err := awaitDial(context.Background(), func() (io.Closer, error) {
		return nil, dialErr
	})
	assert.ErrorIs(t, err, dialErr)
}

func TestAwaitDialClosesLateConnection(t *testing.T) {
	release := make(chan struct{})
	conn := &closeRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := awaitDial(ctx, func() (io.Closer, error) {
		<-release
		return conn, nil
	})
	require.ErrorIs(t, err, context.Canceled)

	// The connection only completes after the caller has given up; it
	// must still be closed rather than leaked.
	close(release)
	assert.Eventually(t, conn.closed.Load, 2*time.Second, 10*time.Millisecond)
}
