//go:build !linux && !darwin && !windows

package gxserialagent

import "fmt"

const hasNativeBackend = false

func lookupPort(name string) error {
	return fmt.Errorf("%w on %s", ErrBackendUnavailable, platform())
}

func openDevice(name string, owner string) (Device, error) {
	return nil, fmt.Errorf("%w on %s", ErrBackendUnavailable, platform())
}
