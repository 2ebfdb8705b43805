//go:build !linux

package led

import "fmt"

func openLine(pin int) (lineDriver, error) {
	return nil, fmt.Errorf("led: gpio not supported on this platform")
}
