package daq

import "fmt"

// Output drivers.
const (
	DriverSerial = "serial"
	DriverGPIO   = "gpio"
	DriverLog    = "log"
)

// NewOpener returns the Opener for driver. serialPort and opts are only
// used by the serial driver.
func NewOpener(driver, serialPort string, opts PortOptions) (Opener, error) {
	switch driver {
	case DriverSerial, "":
		return SerialOpener(serialPort, opts), nil
	case DriverGPIO:
		return OpenGPIOLine, nil
	case DriverLog:
		return OpenLogLine, nil
	default:
		return nil, fmt.Errorf("unknown output driver %q: expected serial, gpio or log", driver)
	}
}
