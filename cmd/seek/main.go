// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// seek streams a Seek Thermal camera over HTTP and optionally MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/coreos/go-systemd/daemon"
	"github.com/maruel/go-seek/seek"
	"github.com/maruel/go-seek/seek/seektest"
	"github.com/maruel/go-seek/seekusb"
	"github.com/maruel/interrupt"
	"github.com/sirupsen/logrus"
)

type args struct {
	Port       int    `arg:"--port" help:"http port to listen on, overrides the config file"`
	Config     string `arg:"--config" help:"path to the config file, defaults to ~/.config/seek/seek.yaml"`
	Fake       bool   `arg:"--fake" help:"simulate a camera"`
	Verbose    bool   `arg:"-v,--verbose" help:"log debug messages"`
	CPUProfile string `arg:"--cpuprofile" help:"dump CPU profile in file"`
}

func (args) Description() string {
	return "Streams a Seek Thermal camera."
}

func openDev(a *args, cfg *Config, log *logrus.Logger) (*seek.Dev, error) {
	var t seek.Transport
	if a.Fake {
		s := seektest.NewSensor(time.Now().UnixNano())
		s.Delay = time.Second / 9
		t = &seektest.Transport{Sensor: s}
	} else {
		u, err := seekusb.Open(nil)
		if err != nil {
			return nil, fmt.Errorf("%w\nIf testing without hardware, use --fake to simulate a camera", err)
		}
		log.Debugf("opened %s", u)
		t = u
	}
	dev, err := seek.New(t, &seek.Opts{
		ReadTimeout:   time.Duration(cfg.ReadTimeout),
		Policy:        seek.Policy{MaxFailures: cfg.MaxFailures},
		FixDeadPixels: cfg.FixDeadPixels,
		Logger:        log,
	})
	if err != nil {
		t.Close()
		return nil, err
	}
	return dev, nil
}

func mainImpl() error {
	a := args{}
	arg.MustParse(&a)
	log := logrus.New()
	if a.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if a.CPUProfile != "" {
		f, err := os.Create(a.CPUProfile)
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	interrupt.HandleCtrlC()
	if a.Config == "" {
		a.Config = defaultConfigPath()
	}
	cfg, err := loadConfig(a.Config, log)
	if err != nil {
		return err
	}
	if a.Port != 0 {
		cfg.Port = a.Port
	}

	dev, err := openDev(&a, cfg, log)
	if err != nil {
		return err
	}
	defer dev.Close()

	s, err := StartWebServer(cfg.Port, dev, log)
	if err != nil {
		return err
	}
	var pub *Publisher
	if cfg.MQTT.isValid() {
		if pub, err = NewPublisher(&cfg.MQTT, log); err != nil {
			return err
		}
		defer pub.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-interrupt.Channel
		cancel()
	}()

	c := make(chan *seek.Frame, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- dev.Stream(ctx, c)
		interrupt.Set()
	}()
	go func() {
		// Processing is done in a separate loop to not miss a frame.
		for {
			select {
			case f := <-c:
				s.AddImg(f)
				if pub != nil {
					pub.Publish(f)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		exe, _ := os.Executable()
		name, err := watchFiles(exe, a.Config)
		if err != nil {
			log.WithError(err).Warn("watching files failed")
			return
		}
		if name != "" {
			log.Infof("%s changed, exiting", name)
			interrupt.Set()
		}
	}()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.WithError(err).Warn("failed to notify systemd")
	} else if ok {
		log.Debug("notified systemd")
	}

	for !interrupt.IsSet() {
		st := dev.Stats()
		line := fmt.Sprintf("\r%d frames %d calibrations %d skipped %d unrecognized %d fail %d retries", st.GoodFrames, st.CalibrationFrames, st.SkippedFrames, st.UnrecognizedFrames, st.TransferFails, st.Retries)
		if pub != nil {
			ps := pub.Stats()
			line += fmt.Sprintf(" %d published %d throttled", ps.Published, ps.Throttled)
		}
		fmt.Print(line)
		time.Sleep(time.Second)
	}
	fmt.Print("\n")
	cancel()
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nseek: %s.\n", err)
		os.Exit(1)
	}
}
