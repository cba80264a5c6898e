package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsQueuedJobsBeforeClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2})
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
			ran.Add(1)
			return nil
		}))
	}
	d.Close()
	assert.Equal(t, int32(10), ran.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()
	err := d.Enqueue(context.Background(), "send.text", "", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 1, Workers: 1})
	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "block", "", func() error {
		close(started)
		<-block
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), "queued", "", func() error { return nil }))
	err := d.Enqueue(context.Background(), "overflow", "", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)
	close(block)
	d.Close()
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "send.text", "", func() error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	}))
	d.Close()
	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherCountsPermanentFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "send.text", "", func() error {
		calls.Add(1)
		return errors.New("bad request")
	}))
	d.Close()
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestSanitizeAndClassify(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:ABC-def_ghi/sendMessage": dial tcp`)
	assert.NotContains(t, sanitizeErrorMessage(err), "ABC-def_ghi")
	assert.Equal(t, "timeout", classifyError(context.DeadlineExceeded))
	assert.Equal(t, "dial", classifyError(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.Equal(t, "unknown", classifyError(errors.New("x")))
	assert.Equal(t, "", classifyError(nil))
}
