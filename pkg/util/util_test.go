package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReverseG(t *testing.T) {
	arr := []int32{1, 2, 3, 4}
	rev := ReverseG(arr)
	assert.Equal(t, []int32{4, 3, 2, 1}, rev)
	// original untouched
	assert.Equal(t, []int32{1, 2, 3, 4}, arr)
}

func TestRoundFloat(t *testing.T) {
	assert.Equal(t, 1.23, RoundFloat(1.2345, 2))
	assert.Equal(t, 1.235, RoundFloat(1.23456, 3))
}
