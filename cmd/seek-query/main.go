// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// seek-query runs the handshake and prints what the camera replied.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/maruel/go-seek/seek"
	"github.com/maruel/go-seek/seekusb"
)

func mainImpl() error {
	timeout := flag.Duration("timeout", time.Second, "control transfer timeout")
	frames := flag.Int("frames", 0, "read this number of frames and print their status")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}

	t, err := seekusb.Open(&seekusb.Opts{ControlTimeout: *timeout})
	if err != nil {
		return err
	}
	dev, err := seek.New(t, nil)
	if err != nil {
		t.Close()
		return err
	}
	defer dev.Close()
	fmt.Printf("Device:              %s\n", t)
	info := dev.Info()
	fmt.Printf("FirmwareInfo:        % x\n", info.FirmwareInfo)
	fmt.Printf("ChipID:              % x\n", info.ChipID)
	for i, s := range info.FactorySettings {
		fmt.Printf("FactorySettings[%d]:  % x\n", i, s)
	}
	fmt.Printf("OperationMode:       % x -> % x\n", info.OperationMode[0], info.OperationMode[1])
	for i := 0; i < *frames; i++ {
		raw, err := dev.ReadRawFrame(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Frame %d:             %s\n", i, raw.Status())
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nseek-query: %s.\n", err)
		os.Exit(1)
	}
}
