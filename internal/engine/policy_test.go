package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRobinDecide(t *testing.T) {
	p := RoundRobin{Delay: 500 * time.Millisecond}
	d := p.Decide(Reading{}, 4, 8)

	require.Len(t, d.Instructions, 16)
	assert.Equal(t, uint64(5), d.Counter)
	assert.Empty(t, d.Events)
	for i, in := range d.Instructions {
		assert.Equal(t, i/2, in.Line)
		assert.Equal(t, i%2 == 0, in.On)
		assert.Equal(t, 500*time.Millisecond, in.Delay)
	}
}

func TestEdgeCountDetected(t *testing.T) {
	low := EdgeCount{ActiveLow: true}
	assert.True(t, low.Detected(false))
	assert.False(t, low.Detected(true))

	high := EdgeCount{}
	assert.True(t, high.Detected(true))
	assert.False(t, high.Detected(false))
}

func TestEdgeCountDecideSequence(t *testing.T) {
	p := EdgeCount{ActiveLow: true, Indicator: 0, Flash: 500 * time.Millisecond, Debounce: time.Second}

	var counter uint64
	for _, level := range []bool{false, true, false, false} {
		d := p.Decide(Reading{Kind: InputDigital, Level: level}, counter, 1)
		if level {
			assert.Empty(t, d.Instructions)
			assert.Equal(t, counter, d.Counter)
		} else {
			assert.Equal(t, counter+1, d.Counter)
			assert.Equal(t, []Instruction{
				{Line: 0, On: true, Delay: 500 * time.Millisecond},
				{Line: 0, On: false, Delay: time.Second},
			}, d.Instructions)
		}
		counter = d.Counter
	}
	assert.Equal(t, uint64(3), counter)
}

func TestThresholdBulkDecide(t *testing.T) {
	p := ThresholdBulk{Threshold: 29}

	for _, r := range []float64{-40, 0, 28.99, 29, 29.01, 85} {
		d := p.Decide(Reading{Kind: InputScalar, Value: r}, 0, 8)
		require.Len(t, d.Instructions, 8)
		want := r < 29
		for _, in := range d.Instructions {
			assert.Equal(t, want, in.On, "reading %v", r)
			assert.Zero(t, in.Delay)
		}
		assert.Equal(t, !want, p.Exceeded(r))
	}
}

func TestPolicyInputs(t *testing.T) {
	assert.Equal(t, InputNone, RoundRobin{}.Input())
	assert.Equal(t, InputDigital, EdgeCount{}.Input())
	assert.Equal(t, InputScalar, ThresholdBulk{}.Input())
	assert.Equal(t, "scalar", InputScalar.String())
}
