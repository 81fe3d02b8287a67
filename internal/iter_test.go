package internal

import (
	"maps"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIterSeq2Concat(t *testing.T) {
	assert := assert.New(t)

	seq := IterSeq2Concat(
		maps.All(map[string]string{"A": "1"}),
		maps.All(map[string]string{"B": "2", "C": "3"}),
	)
	assert.Equal(map[string]string{"A": "1", "B": "2", "C": "3"}, maps.Collect(seq))

	count := 0
	for range seq {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(2, count)
}
