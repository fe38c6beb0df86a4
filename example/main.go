package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Gurux/gxcommon-go"
	"github.com/Gurux/gxserialagent-go"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

var (
	settings = flag.String("S", "", "Serial settings, e.g. /dev/ttyUSB0,9600,8,n,1")
	message  = flag.String("m", "", "Send message")
	t        = flag.String("t", "", "Trace level.")
	w        = flag.Int("w", 1000, "WaitTime in milliseconds.")
	lang     = flag.String("lang", "", "Used language.")
	list     = flag.Bool("l", false, "List available serial ports.")
)

func listPorts(logger *zap.Logger) {
	ports, err := gxserialagent.GetPortDetails()
	if err != nil {
		logger.Error("Failed to get available serial ports", zap.Error(err))
		return
	}
	for _, it := range ports {
		if it.IsUSB {
			fmt.Printf("%s USB %s:%s %s %s\n", it.Name, it.VID, it.PID, it.SerialNumber, it.Product)
		} else {
			fmt.Println(it.Name)
		}
	}
}

func main() {
	flag.Parse()
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	if !gxserialagent.IsSerialBackendAvailable() {
		logger.Error("Serial ports are not supported on this platform")
		return
	}
	if *list {
		listPorts(logger)
		return
	}
	if *settings == "" || *message == "" {
		flag.PrintDefaults()
		return
	}
	s, err := gxserialagent.Parse(*settings)
	if err != nil {
		logger.Error("Invalid serial settings", zap.String("settings", *settings), zap.Error(err))
		return
	}

	agent := gxserialagent.NewGXSerialAgent("example", nil)
	agent.ConfigureSettings(s)
	if *lang != "" {
		tag, err := language.Parse(*lang)
		if err != nil {
			logger.Error("Invalid language", zap.Error(err))
			return
		}
		agent.Localize(tag)
	}
	agent.SetOnError(func(a *gxserialagent.GXSerialAgent, err error) {
		logger.Error("Serial error", zap.String("port", a.GetName()), zap.Error(err))
	})
	agent.SetOnMediaStateChange(func(a *gxserialagent.GXSerialAgent, e gxcommon.MediaStateEventArgs) {
		logger.Info("Media state change", zap.String("port", a.GetName()), zap.String("state", e.State().String()))
	})
	agent.SetOnTrace(func(a *gxserialagent.GXSerialAgent, e gxcommon.TraceEventArgs) {
		logger.Debug("Trace", zap.String("port", a.GetName()), zap.String("trace", e.String()))
	})
	if err := agent.Validate(); err != nil {
		logger.Error("Invalid settings", zap.Error(err))
		return
	}
	if *t != "" {
		tl, err := gxcommon.TraceLevelParse(*t)
		if err != nil {
			logger.Error("Invalid trace level", zap.Error(err))
			return
		}
		if err := agent.SetTrace(tl); err != nil {
			logger.Error("Failed to set trace level", zap.Error(err))
			return
		}
	}
	if err := agent.StartAgent(); err != nil {
		ports, perr := gxserialagent.GetPortNames()
		logger.Error("Failed to open serial port",
			zap.Error(err),
			zap.String("available", strings.Join(ports, ",")),
			zap.NamedError("list_error", perr))
		return
	}
	defer func() {
		if err := agent.StopAgent(); err != nil {
			logger.Error("Failed to close serial port", zap.Error(err))
		}
	}()
	logger.Info("Serial port opened", zap.Stringer("settings", agent.ActualSettings()))

	if err := agent.Send(*message + "\n"); err != nil {
		logger.Error("Failed to send", zap.Error(err))
		return
	}
	reply := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 256)
		n, err := agent.Read(buf)
		if err != nil && err != io.EOF {
			logger.Error("Failed to read", zap.Error(err))
		}
		reply <- buf[:n]
	}()
	select {
	case data := <-reply:
		logger.Info("Reply received", zap.Int("bytes_read", len(data)), zap.Binary("data", data))
	case <-time.After(time.Duration(*w) * time.Millisecond):
		logger.Warn("No reply", zap.Int("wait_ms", *w))
	}
}
