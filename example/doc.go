/*
Package main contains a command-line example for gxserialagent.

The example shows how to:
  - configure a serial connection from the settings text
  - forward trace, state and error events to a zap logger
  - send a message
  - wait for a reply from the input stream
  - list the available serial ports with USB details
*/
package main
