package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual_NormalizesNumbersAndEmpty(t *testing.T) {
	assert.True(t, Equal(2, float64(2)))
	assert.True(t, Equal(json.Number("3"), int64(3)))
	assert.True(t, Equal("", nil))
	assert.True(t, Equal(nil, "  "))
	assert.False(t, Equal("2", 2))
	assert.False(t, Equal(false, nil))
	assert.True(t, Equal(true, true))
	assert.False(t, Equal("Tesla", "tesla"))
}

func TestConversions(t *testing.T) {
	assert.Equal(t, 4, AsInt("4"))
	assert.Equal(t, 4, AsInt(float64(4)))
	assert.Equal(t, 0, AsInt("four"))
	assert.Equal(t, 2, AsInt("2.0"))
	assert.Equal(t, "12.5", AsString(12.5))
	assert.Equal(t, "", AsString(nil))
	assert.True(t, AsBool("true"))
	assert.False(t, AsBool(nil))
	assert.InDelta(t, 1.21, AsFloat("1.21"), 0.0001)
}
