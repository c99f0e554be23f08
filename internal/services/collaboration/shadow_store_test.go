package collaboration

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestShadowStoreLazyCreate(t *testing.T) {
	ss := NewShadowStore()

	sh := ss.Get("d1")
	assert.Equal(t, sh == nil, false)
	assert.Equal(t, sh.hydrated, false)
	assert.Equal(t, ss.Len(), 1)

	// Same entry on repeat access
	assert.Equal(t, ss.Get("d1") == sh, true)
	assert.Equal(t, ss.Len(), 1)
}

func TestShadowStoreDropForcesRehydration(t *testing.T) {
	ss := NewShadowStore()

	sh := ss.Get("d1")
	sh.text = "cached"
	sh.hydrated = true

	ss.Drop("d1")
	assert.Equal(t, ss.Len(), 0)

	fresh := ss.Get("d1")
	assert.Equal(t, fresh == sh, false)
	assert.Equal(t, fresh.hydrated, false)
}
