package serialport

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// ErrNoBoard is returned when no attached port looks like the capture board.
var ErrNoBoard = errors.New("no STM32 serial port found")

// stmVendorID is the USB vendor ID of STMicroelectronics.
const stmVendorID = "0483"

// DetectPort picks the capture board from ports: the first USB port whose
// product string mentions STM or whose vendor ID is STMicroelectronics'.
func DetectPort(ports []*enumerator.PortDetails) (string, error) {
	for _, p := range ports {
		if p == nil {
			continue
		}
		if strings.Contains(strings.ToUpper(p.Product), "STM") ||
			(p.IsUSB && strings.EqualFold(p.VID, stmVendorID)) {
			return p.Name, nil
		}
	}
	return "", ErrNoBoard
}

// FindBoard enumerates the system's serial ports and returns the one
// DetectPort selects.
func FindBoard() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	return DetectPort(ports)
}
