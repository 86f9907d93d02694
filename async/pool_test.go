package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_RunsAll(t *testing.T) {
	p := NewPool("test", 3, 10)
	var count int32
	var results []*AsyncError
	for i := 0; i < 20; i++ {
		results = append(results, p.Submit(func() error {
			atomic.AddInt32(&count, 1)
			return nil
		}))
	}
	for _, r := range results {
		assert.NoError(t, r.Wait(context.Background()))
	}
	p.Stop()
	assert.Equal(t, int32(20), atomic.LoadInt32(&count))
}

func TestPool_ErrorAndPanic(t *testing.T) {
	p := NewPool("test", 1, 0)
	defer p.Stop()

	boom := errors.New("boom")
	assert.Equal(t, boom, p.Submit(func() error { return boom }).Wait(context.Background()))
	assert.Error(t, p.Submit(func() error { panic("oops") }).Wait(context.Background()))
	// the worker survived the panic
	assert.NoError(t, p.Submit(func() error { return nil }).Wait(context.Background()))
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool("test", 1, 0)
	p.Stop()
	p.Stop()
	err := p.Submit(func() error { return nil }).Wait(context.Background())
	assert.Error(t, err)
}
