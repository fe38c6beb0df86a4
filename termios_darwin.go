//go:build darwin

package gxserialagent

import (
	"fmt"

	"github.com/Gurux/gxcommon-go"
	"golang.org/x/sys/unix"
)

const (
	ioctlGetTermios = unix.TIOCGETA
	ioctlSetTermios = unix.TIOCSETA
	ioctlInQueue    = unix.FIONREAD
)

// toUnixBaudRate maps a baud rate to the corresponding constant in the unix package.
var toUnixBaudRate = map[gxcommon.BaudRate]uint64{
	50:     unix.B50,
	75:     unix.B75,
	110:    unix.B110,
	134:    unix.B134,
	150:    unix.B150,
	200:    unix.B200,
	300:    unix.B300,
	600:    unix.B600,
	1200:   unix.B1200,
	1800:   unix.B1800,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

func setSpeed(t *unix.Termios, value gxcommon.BaudRate) error {
	speed, ok := toUnixBaudRate[value]
	if !ok {
		return fmt.Errorf("%w: baud rate %d", ErrUnsupportedOperation, value)
	}
	t.Ispeed = speed
	t.Ospeed = speed
	return nil
}

func getSpeed(t *unix.Termios) (gxcommon.BaudRate, error) {
	for k, v := range toUnixBaudRate {
		if v == t.Ospeed {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown speed %d", t.Ospeed)
}

func setParity(t *unix.Termios, value gxcommon.Parity) error {
	t.Cflag &^= unix.PARENB | unix.PARODD
	switch value {
	case gxcommon.ParityNone:
	case gxcommon.ParityEven:
		t.Cflag |= unix.PARENB
	case gxcommon.ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
	default:
		return fmt.Errorf("%w: mark/space parity", ErrUnsupportedOperation)
	}
	return nil
}

func getParity(t *unix.Termios) gxcommon.Parity {
	if t.Cflag&unix.PARENB == 0 {
		return gxcommon.ParityNone
	}
	if t.Cflag&unix.PARODD != 0 {
		return gxcommon.ParityOdd
	}
	return gxcommon.ParityEven
}

func flushInput(fd int) error {
	return ioctlSetIntPointer(fd, unix.TIOCFLUSH, unix.TCIFLUSH)
}

func drain(fd int) error {
	return unix.IoctlSetInt(fd, unix.TIOCDRAIN, 0)
}
