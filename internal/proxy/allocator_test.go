package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForAccountDeterministic(t *testing.T) {
	a := NewAllocator([]string{"http://p0:8080", "http://p1:8080", "http://p2:8080"})

	for _, id := range []int{0, 1, 2, 3, 17, 1000} {
		first := a.ForAccount(id)
		second := a.ForAccount(id)
		assert.Equal(t, first, second, "account %d must map stably", id)
	}

	assert.Equal(t, "http://p0:8080", a.ForAccount(0))
	assert.Equal(t, "http://p1:8080", a.ForAccount(1))
	assert.Equal(t, "http://p0:8080", a.ForAccount(3))
}

func TestForAccountEmptyList(t *testing.T) {
	a := NewAllocator(nil)
	assert.Equal(t, "", a.ForAccount(5))
	assert.Equal(t, "", a.Next())
}

func TestNextRoundRobin(t *testing.T) {
	a := NewAllocator([]string{"a", "b"})

	assert.Equal(t, "a", a.Next())
	assert.Equal(t, "b", a.Next())
	assert.Equal(t, "a", a.Next())

	// The round-robin cursor is independent of the per-account mapping
	assert.Equal(t, "a", a.ForAccount(0))
	assert.Equal(t, "b", a.Next())
}
