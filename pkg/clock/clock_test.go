package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNowMonotonic(t *testing.T) {
	a := Now()
	time.Sleep(2 * time.Millisecond)
	b := Now()
	require.Greater(t, b, a)
}

func TestRealSource(t *testing.T) {
	var s Source = Real{}
	require.GreaterOrEqual(t, s.NowUs(), uint64(0))
}
