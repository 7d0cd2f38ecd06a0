package guard

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnterLeaveAllowsReentry(t *testing.T) {
	p := NewPair()
	require.True(t, p.Enter())
	p.Leave()
	require.True(t, p.Enter())
	p.Leave()
}

func TestDisableBlocksEntry(t *testing.T) {
	p := NewPair()
	release, _ := p.Disable()
	assert.False(t, p.Enter())
	release()
	assert.True(t, p.Enter())
	p.Leave()
}

func TestDisableWaitsForInFlightCallback(t *testing.T) {
	p := NewPair()
	require.True(t, p.Enter())

	done := make(chan DisableResult, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		release, result := p.Disable()
		done <- result
		release()
	}()

	time.Sleep(5 * time.Millisecond)
	p.Leave()
	wg.Wait()
	result := <-done
	assert.True(t, result.Waited >= 0)
}

func TestEnterRejectsWhenDisabledConcurrently(t *testing.T) {
	p := NewPair()
	p.allowEnter.Store(false)
	assert.False(t, p.Enter())
}
