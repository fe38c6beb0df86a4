//go:build linux

package gxserialagent

import (
	"fmt"

	"github.com/Gurux/gxcommon-go"
	"golang.org/x/sys/unix"
)

const (
	ioctlGetTermios = unix.TCGETS
	ioctlSetTermios = unix.TCSETS
	ioctlInQueue    = unix.TIOCINQ
	// Mark or space parity.
	cmspar = 0x40000000
)

// toUnixBaudRate maps a baud rate to the corresponding constant in the unix package.
var toUnixBaudRate = map[gxcommon.BaudRate]uint32{
	50:      unix.B50,
	75:      unix.B75,
	110:     unix.B110,
	134:     unix.B134,
	150:     unix.B150,
	200:     unix.B200,
	300:     unix.B300,
	600:     unix.B600,
	1200:    unix.B1200,
	1800:    unix.B1800,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1152000: unix.B1152000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
	2500000: unix.B2500000,
	3000000: unix.B3000000,
	3500000: unix.B3500000,
	4000000: unix.B4000000,
}

// The speed lives in the CBAUD bits of Cflag. Ispeed and Ospeed are only
// used by the termios2 interface.
func setSpeed(t *unix.Termios, value gxcommon.BaudRate) error {
	speed, ok := toUnixBaudRate[value]
	if !ok {
		return fmt.Errorf("%w: baud rate %d", ErrUnsupportedOperation, value)
	}
	t.Cflag &^= unix.CBAUD
	t.Cflag |= speed
	t.Ispeed = speed
	t.Ospeed = speed
	return nil
}

func getSpeed(t *unix.Termios) (gxcommon.BaudRate, error) {
	speed := t.Cflag & unix.CBAUD
	for k, v := range toUnixBaudRate {
		if v == speed {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown speed 0x%x", speed)
}

func setParity(t *unix.Termios, value gxcommon.Parity) error {
	t.Cflag &^= unix.PARENB | unix.PARODD | cmspar
	switch value {
	case gxcommon.ParityNone:
	case gxcommon.ParityEven:
		t.Cflag |= unix.PARENB
	case gxcommon.ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
	case gxcommon.ParityMark:
		t.Cflag |= unix.PARENB | cmspar | unix.PARODD
	case gxcommon.ParitySpace:
		t.Cflag |= unix.PARENB | cmspar
	default:
		return fmt.Errorf("%w: parity %d", ErrUnsupportedOperation, value)
	}
	return nil
}

func getParity(t *unix.Termios) gxcommon.Parity {
	if t.Cflag&unix.PARENB == 0 {
		return gxcommon.ParityNone
	}
	odd := t.Cflag&unix.PARODD != 0
	if t.Cflag&cmspar != 0 {
		if odd {
			return gxcommon.ParityMark
		}
		return gxcommon.ParitySpace
	}
	if odd {
		return gxcommon.ParityOdd
	}
	return gxcommon.ParityEven
}

func flushInput(fd int) error {
	return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH)
}

func drain(fd int) error {
	return unix.IoctlSetInt(fd, unix.TCSBRK, 1)
}
