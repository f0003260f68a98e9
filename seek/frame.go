// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package seek

import (
	"fmt"
	"image"
	"math"
	"time"

	"github.com/maruel/go-seek/seek/internal"
	"periph.io/x/periph/conn/physic"
)

// Frame geometry after cropping. The last row and the last two columns are
// not part of the active area.
const (
	Width  = internal.Width - 2
	Height = internal.Height - 1
)

// Status is the frame type, as sent in the frame header.
type Status uint8

// Known values for Status.
const (
	StatusCalibration Status = 1 // Shutter closed, used as the background.
	StatusImage       Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusCalibration:
		return "Calibration"
	case StatusImage:
		return "Image"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// RawFrame is the frame as read from the four bulk transfers.
//
// Interpreted as signed 16 bits little endian words, it is a 208x156 row-major
// grid.
type RawFrame [internal.FrameSize]byte

// Status returns the frame type.
func (r *RawFrame) Status() Status {
	return Status(r[internal.StatusOffset])
}

// crop converts the raw pixels into the cropped float grid.
//
// The status word is not a pixel; it is replaced with the mean of its two row
// neighbours.
func (r *RawFrame) crop(dst []float64) {
	for y := 0; y < Height; y++ {
		src := y * internal.Width
		for x := 0; x < Width; x++ {
			dst[y*Width+x] = float64(internal.Pixel(r[:], src+x))
		}
	}
	i := internal.StatusWord
	l := int32(internal.Pixel(r[:], i-1))
	h := int32(internal.Pixel(r[:], i+1))
	dst[i] = float64((l + h) / 2)
}

// Metadata is updated at each frame.
type Metadata struct {
	Captured     time.Time // When the frame was read.
	FrameCount   int       // Number of frames read since the start of the session, all types included.
	Calibrations int       // Number of calibration frames received so far.
}

// Frame is a temperature map in °C.
type Frame struct {
	Pix      []float64 // Width*Height values, row-major.
	Min      float64
	Max      float64
	Metadata Metadata
}

// NewFrame returns an initialized frame.
func NewFrame() *Frame {
	return &Frame{Pix: make([]float64, Width*Height)}
}

// Bounds returns the frame size.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, Width, Height)
}

// At returns the temperature at x, y in °C.
func (f *Frame) At(x, y int) float64 {
	return f.Pix[y*Width+x]
}

// Temp returns the temperature at x, y.
func (f *Frame) Temp(x, y int) physic.Temperature {
	return ToTemperature(f.At(x, y))
}

// Mean returns the average temperature in °C.
func (f *Frame) Mean() float64 {
	s := 0.
	for _, v := range f.Pix {
		s += v
	}
	return s / float64(len(f.Pix))
}

// ToTemperature converts °C into physic.Temperature.
func ToTemperature(c float64) physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(math.Round(c*float64(physic.Celsius)))
}

func (f *Frame) updateStats() {
	f.Min = math.Inf(1)
	f.Max = math.Inf(-1)
	for _, v := range f.Pix {
		if v < f.Min {
			f.Min = v
		}
		if v > f.Max {
			f.Max = v
		}
	}
}
