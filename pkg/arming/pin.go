package arming

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const sysfsGPIOPath = "/sys/class/gpio"

// SysfsPin is a PinReader backed by the Linux sysfs GPIO interface: the
// same digital read the original firmware does with pinMode/digitalRead,
// done here against gpio<N>/value instead of a microcontroller register.
type SysfsPin struct {
	num       int
	activeLow bool
	valuePath string
}

var _ PinReader = (*SysfsPin)(nil)

// NewSysfsPin exports pin num as an input and returns a PinReader over it.
// activeLow matches the reflectance sensor's wiring in the original
// hardware: its DO line reads LOW when a car is present.
func NewSysfsPin(num int, activeLow bool) (*SysfsPin, error) {
	if err := sysfsExport(num); err != nil {
		return nil, fmt.Errorf("arming: export gpio%d: %w", num, err)
	}
	if err := sysfsSetDirection(num, "in"); err != nil {
		return nil, fmt.Errorf("arming: set gpio%d direction: %w", num, err)
	}
	return &SysfsPin{
		num:       num,
		activeLow: activeLow,
		valuePath: fmt.Sprintf("%s/gpio%d/value", sysfsGPIOPath, num),
	}, nil
}

// Present reads the current pin level, translated for wiring polarity. A
// read failure is reported as not-present rather than propagated, since
// PinReader has no error return and a momentarily unreadable sensor
// should not be mistaken for a car.
func (p *SysfsPin) Present() bool {
	raw, err := os.ReadFile(p.valuePath)
	if err != nil {
		return false
	}
	high := strings.TrimSpace(string(raw)) == "1"
	if p.activeLow {
		return !high
	}
	return high
}

// Close un-exports the pin.
func (p *SysfsPin) Close() error {
	return os.WriteFile(sysfsGPIOPath+"/unexport", []byte(strconv.Itoa(p.num)), 0o644)
}

func sysfsExport(num int) error {
	if _, err := os.Stat(fmt.Sprintf("%s/gpio%d", sysfsGPIOPath, num)); err == nil {
		return nil
	}
	return os.WriteFile(sysfsGPIOPath+"/export", []byte(strconv.Itoa(num)), 0o644)
}

func sysfsSetDirection(num int, dir string) error {
	return os.WriteFile(fmt.Sprintf("%s/gpio%d/direction", sysfsGPIOPath, num), []byte(dir), 0o644)
}
