package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed_IsDeterministicForSameInput(t *testing.T) {
	d := NewDeterministic(32, false, 42)
	a, err := d.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	b, err := d.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEmbed_DiffersForDifferentInput(t *testing.T) {
	d := NewDeterministic(32, false, 42)
	a, _ := d.Embed(context.Background(), "hello")
	b, _ := d.Embed(context.Background(), "goodbye")
	assert.NotEqual(t, a, b)
}

func TestEmbed_ReturnsZeroVectorForEmptyString(t *testing.T) {
	d := NewDeterministic(16, false, 0)
	v, err := d.Embed(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, v, 16)
	for _, x := range v {
		assert.Equal(t, float32(0), x)
	}
}

func TestEmbed_NormalizeProducesUnitVector(t *testing.T) {
	d := NewDeterministic(32, true, 7)
	v, err := d.Embed(context.Background(), "some text to embed for normalization")
	require.NoError(t, err)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 0.001)
}

func TestEmbed_RespectsConfiguredDimension(t *testing.T) {
	d := NewDeterministic(10, false, 0)
	v, err := d.Embed(context.Background(), "short")
	require.NoError(t, err)
	assert.Len(t, v, 10)
}

func TestEmbed_DifferentSeedsProduceDifferentVectors(t *testing.T) {
	a, _ := NewDeterministic(32, false, 1).Embed(context.Background(), "same text")
	b, _ := NewDeterministic(32, false, 2).Embed(context.Background(), "same text")
	assert.NotEqual(t, a, b)
}

func TestNewDeterministic_DefaultsDimTo64(t *testing.T) {
	d := NewDeterministic(0, false, 0)
	assert.Equal(t, 64, d.Dim)
}
