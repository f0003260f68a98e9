// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package seek

import (
	"image"
)

// deadThreshold is the fraction of the mean calibration value under which a
// pixel is considered dead.
const deadThreshold = 0.3

// Calibration holds the most recent calibration frame and the dead pixels
// found in the first one.
//
// The zero value holds no calibration. It is not safe for concurrent use.
type Calibration struct {
	background []float64     // nil until the first calibration frame.
	dead       []image.Point // Computed once.
	count      int
}

// Ready returns true once a calibration frame was received.
func (c *Calibration) Ready() bool {
	return c.background != nil
}

// Count returns the number of calibration frames received.
func (c *Calibration) Count() int {
	return c.count
}

// DeadPixels returns the pixels found dead in the first calibration frame. X
// is the column and Y the row.
func (c *Calibration) DeadPixels() []image.Point {
	out := make([]image.Point, len(c.dead))
	copy(out, c.dead)
	return out
}

// Update replaces the background with raw, which must be a calibration frame.
// Dead pixels are only searched in the first one.
func (c *Calibration) Update(raw *RawFrame) {
	first := c.background == nil
	if first {
		c.background = make([]float64, Width*Height)
	}
	raw.crop(c.background)
	c.count++
	if !first {
		return
	}
	mean := 0.
	for _, v := range c.background {
		mean += v
	}
	mean /= float64(len(c.background))
	limit := deadThreshold * mean
	c.dead = []image.Point{}
	for i, v := range c.background {
		if v < limit {
			c.dead = append(c.dead, image.Point{X: i % Width, Y: i / Width})
		}
	}
}

// Outcome is the result of processing one raw frame.
type Outcome int

// Valid values for Outcome.
const (
	NoFrame      Outcome = iota // The frame could not be read.
	Unrecognized                // Unknown status; the frame was dropped.
	Calibrated                  // The calibration was updated; no output.
	Temperature                 // An image frame; dst was filled unless an error is returned.
)

func (o Outcome) String() string {
	switch o {
	case Calibrated:
		return "Calibrated"
	case Temperature:
		return "Temperature"
	case Unrecognized:
		return "Unrecognized"
	default:
		return "NoFrame"
	}
}

// Classify routes raw by its status: calibration frames update cal, image
// frames are decoded into dst.
//
// An image frame received before any calibration returns ErrNoCalibration. An
// unknown status returns *StatusError. In both cases nothing is modified.
func Classify(raw *RawFrame, cal *Calibration, dst *Frame) (Outcome, error) {
	switch s := raw.Status(); s {
	case StatusCalibration:
		cal.Update(raw)
		return Calibrated, nil
	case StatusImage:
		return Temperature, Decode(raw, cal, dst)
	default:
		return Unrecognized, &StatusError{Status: s}
	}
}
