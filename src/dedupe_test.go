package rawxfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeRepeatNotCounted(t *testing.T) {
	var d = dedupe_init()

	assert.True(t, d.dedupe_remember("A"))
	assert.False(t, d.dedupe_remember("A"), "same name straight after is a repeat")
	assert.True(t, d.dedupe_remember("B"))
	assert.True(t, d.dedupe_remember("A"), "A again after B counts")
	assert.Equal(t, 3, d.dedupe_count())
}

func TestDedupeFirstFileAlwaysCounts(t *testing.T) {
	var d = dedupe_init()

	// Nothing received yet, so even an odd name isn't a repeat.
	assert.True(t, d.dedupe_remember(""))
	assert.Equal(t, 1, d.dedupe_count())
}
