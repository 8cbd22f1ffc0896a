package distribution

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder_GrowsBothEnds(t *testing.T) {
	var b builder
	b.addOccurrences(3, big.NewInt(2))
	b.addOccurrences(0, big.NewInt(1))
	b.addOccurrences(5, big.NewInt(4))
	b.addOccurrences(3, big.NewInt(1))

	d := b.finish()
	assert.Equal(t, 0, d.Min())
	assert.Equal(t, 5, d.Max())
	assert.Equal(t, int64(1), d.Occurrence(0).Int64())
	assert.Equal(t, int64(3), d.Occurrence(3).Int64())
	assert.Equal(t, int64(4), d.Occurrence(5).Int64())
	assert.Equal(t, int64(0), d.Occurrence(4).Int64())
	assert.Equal(t, int64(8), d.Total().Int64())
	assert.Nil(t, b.counts, "finish must detach the counts")
}

func TestBuilder_DoesNotAliasInput(t *testing.T) {
	var b builder
	n := big.NewInt(5)
	b.addOccurrences(1, n)
	n.SetInt64(100)
	assert.Equal(t, int64(5), b.finish().Occurrence(1).Int64())
}
