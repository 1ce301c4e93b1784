package contestengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundGuard(t *testing.T) {
	g := NewRoundGuard()

	release, ok := g.TryAcquire(1)
	require.True(t, ok)
	assert.True(t, g.Held(1))

	_, ok = g.TryAcquire(1)
	assert.False(t, ok, "second acquire of the same contest must fail")

	other, ok := g.TryAcquire(2)
	require.True(t, ok, "other contests are independent")
	other()

	release()
	release()
	assert.False(t, g.Held(1))

	again, ok := g.TryAcquire(1)
	require.True(t, ok)
	again()
}
