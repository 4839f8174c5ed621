// Package clock provides the single free-running microsecond counter every
// role reads timestamps from. It stands in for the ESP32's esp_timer_get_time,
// callable from any goroutine including the ones standing in for ISRs.
package clock

import "time"

var processStart = time.Now()

// Now returns microseconds elapsed since the clock was initialized. It is
// wait-free (no locks, no allocation) and safe to call concurrently,
// including from code that plays the role of a hardware ISR.
func Now() uint64 {
	return uint64(time.Since(processStart).Microseconds())
}

// Source is the minimal clock capability a component needs; production code
// uses the package-level Now, tests can substitute a fake.
type Source interface {
	NowUs() uint64
}

// Real adapts the package clock to the Source interface.
type Real struct{}

func (Real) NowUs() uint64 { return Now() }
