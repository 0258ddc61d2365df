package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	page, limit := Clamp(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultLimit, limit)

	page, limit = Clamp(-3, 1000)
	assert.Equal(t, 1, page)
	assert.Equal(t, MaxLimit, limit)

	page, limit = Clamp(4, 25)
	assert.Equal(t, 4, page)
	assert.Equal(t, 25, limit)
}

func TestPages(t *testing.T) {
	assert.Equal(t, 0, Pages(0, 10))
	assert.Equal(t, 1, Pages(10, 10))
	assert.Equal(t, 2, Pages(11, 10))
	assert.Equal(t, 5, Pages(41, 10))
}
