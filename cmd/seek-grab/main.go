// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// seek-grab captures a single image.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"os"
	"time"

	"github.com/maruel/go-seek/heatmap"
	"github.com/maruel/go-seek/seek"
	"github.com/maruel/go-seek/seek/seektest"
	"github.com/maruel/go-seek/seekusb"
	"github.com/maruel/interrupt"
)

func mainImpl() error {
	gray := flag.Bool("gray", false, "Save a 8 bit gray PNG instead of the default pseudo color")
	raw := flag.Bool("raw", false, "Save the temperatures as float16 instead of a PNG")
	fix := flag.Bool("fix", false, "Replace dead pixels with the median of their neighbours")
	fake := flag.Bool("fake", false, "Use a simulated camera")
	timeout := flag.Duration("timeout", 10*time.Second, "Maximum time to wait for a frame")
	meta := flag.Bool("meta", false, "print metadata")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.Lmicroseconds)

	if flag.NArg() != 1 {
		return errors.New("supply path to PNG to save")
	}

	interrupt.HandleCtrlC()
	var t seek.Transport
	if *fake {
		t = &seektest.Transport{Sensor: seektest.NewSensor(time.Now().UnixNano())}
	} else {
		u, err := seekusb.Open(nil)
		if err != nil {
			return fmt.Errorf("%w\nIf testing without hardware, use -fake to simulate a camera", err)
		}
		t = u
	}
	dev, err := seek.New(t, &seek.Opts{FixDeadPixels: *fix})
	if err != nil {
		t.Close()
		return err
	}
	defer dev.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	go func() {
		select {
		case <-interrupt.Channel:
			cancel()
		case <-ctx.Done():
		}
	}()
	frame := seek.NewFrame()
	if err := dev.NextFrame(ctx, frame); err != nil {
		return err
	}
	if *meta {
		fmt.Printf("Captured:     %s\n", frame.Metadata.Captured)
		fmt.Printf("FrameCount:   %d\n", frame.Metadata.FrameCount)
		fmt.Printf("Calibrations: %d\n", frame.Metadata.Calibrations)
		fmt.Printf("Min:          %s at %s\n", seek.ToTemperature(frame.Min), heatmap.Min(frame))
		fmt.Printf("Max:          %s at %s\n", seek.ToTemperature(frame.Max), heatmap.Max(frame))
		fmt.Printf("Mean:         %s\n", seek.ToTemperature(frame.Mean()))
		fmt.Printf("Dead pixels:  %d\n", len(dev.Calibration().DeadPixels()))
	}
	f, err := os.Create(flag.Args()[0])
	if err != nil {
		return err
	}
	defer f.Close()
	if *raw {
		_, err = f.Write(heatmap.EncodeFloat16(frame))
		return err
	}
	var img image.Image = heatmap.PseudoRGB(frame)
	if *gray {
		img = heatmap.AGCLinear(frame)
	}
	return png.Encode(f, img)
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\nseek-grab: %s.\n", err)
		os.Exit(1)
	}
}
