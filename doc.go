// Package gxserialagent exposes a serial port as a bidirectional byte stream
// for Gurux components.
//
// The agent opens the port exclusively, applies the line settings, verifies
// them by reading them back and then publishes an input and an output stream.
// Bytes announced by the device are moved to a bounded receive queue so that
// a consumer can use plain blocking io.Reader and io.Writer calls.
//
// Features
//
//   - Compact settings text "name,baud,bits,parity,stop", e.g. "COM3,9600,8,n,1".
//   - Bounded retry when the line settings can not be applied.
//   - Read back verification of the applied settings.
//   - I/O errors of the receive path are latched and returned to every read.
//   - Tracing: configurable trace level for sent/received/error/info.
//   - Events: Error, Trace and MediaState callbacks.
//   - Port enumeration with USB details.
//
// # Construction
//
// Use NewGXSerialAgent to create an agent. A nil driver selects the serial
// ports of the operating system.
//
// Example
//
//	s, err := gxserialagent.Parse("/dev/ttyUSB0,9600,8,n,1")
//	if err != nil {
//	    // handle invalid settings
//	}
//	agent := gxserialagent.NewGXSerialAgent("meter", nil)
//	agent.ConfigureSettings(s)
//	if err := agent.StartAgent(); err != nil {
//	    // handle connect error
//	}
//	defer agent.StopAgent()
//
//	_, _ = agent.Write([]byte{0x01, 0x02, 0x03})
//	buf := make([]byte, 256)
//	n, err := agent.Read(buf)
//
// # Errors
//
// Connect failures are returned as *ConnectError wrapping one of the sentinel
// errors, e.g. ErrDeviceNotFound, ErrPortBusy or ErrSettingsMismatch. Use
// errors.Is to test them. Settings text errors are *ParseError values telling
// the rejected field.
//
// # Notes
//
// Long-running work in event handlers should be offloaded to a separate
// goroutine. The error handler is called from the device notifier.
package gxserialagent
