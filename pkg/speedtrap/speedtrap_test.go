package speedtrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpeedTrapWorkedExample(t *testing.T) {
	tr := New()
	require.True(t, tr.FirstEdge(5_000_000))
	require.True(t, tr.SecondEdge(5_020_000))

	sample, ok := tr.Sample(0.10)
	require.True(t, ok)
	require.Equal(t, uint64(5_000_000), sample.TriggerTimeUs)
	require.InDelta(t, 5.0, sample.SpeedMps, 0.0001)
}

func TestSecondEdgeIgnoredWithoutFirst(t *testing.T) {
	tr := New()
	require.False(t, tr.SecondEdge(1000))
	_, ok := tr.Sample(0.1)
	require.False(t, ok)
}

func TestOnlyFirstEdgeKeptUntilCleared(t *testing.T) {
	tr := New()
	require.True(t, tr.FirstEdge(1000))
	require.False(t, tr.FirstEdge(2000), "a second first-edge before clear must be ignored")
}

func TestSampleRejectsDeltaAtOrAboveSanityWindow(t *testing.T) {
	tr := New()
	tr.FirstEdge(1000)
	tr.SecondEdge(1000 + SanityWindowUs) // exactly at the window boundary: rejected
	_, ok := tr.Sample(1.0)
	require.False(t, ok)
}

func TestSampleRejectsNonPositiveDelta(t *testing.T) {
	tr := New()
	tr.FirstEdge(1000)
	tr.SecondEdge(1000) // t2 == t1: StoreIfUnset still succeeds, delta is zero
	_, ok := tr.Sample(1.0)
	require.False(t, ok)
}

func TestSampleClearsCellsRegardlessOfOutcome(t *testing.T) {
	tr := New()
	tr.FirstEdge(1000)
	tr.SecondEdge(1000 + SanityWindowUs) // rejected window
	tr.Sample(1.0)
	require.True(t, tr.FirstEdge(500), "cells must be clear after a rejected sample")
}

func TestCheckAbandonAfterTimeout(t *testing.T) {
	tr := New()
	tr.FirstEdge(1000)
	require.False(t, tr.CheckAbandon(time.Now()))
	require.True(t, tr.CheckAbandon(time.Now().Add(AbandonTimeout+time.Millisecond)))
	require.True(t, tr.FirstEdge(2000), "abandon must clear t1 so a new capture can start")
}

func TestClearResetsBothCells(t *testing.T) {
	tr := New()
	tr.FirstEdge(1)
	tr.SecondEdge(2)
	tr.Clear()
	require.True(t, tr.FirstEdge(99), "FirstEdge must succeed again after Clear")
}
