// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package seek

import (
	"image"
	"sort"
)

// Linear conversion from background subtracted counts to °C. Sensor specific.
const (
	gain   = 0.0179
	offset = 42.
)

// Decode converts an image frame into temperatures, using the background held
// by cal.
//
// dst.Pix is reallocated if it is not Width*Height long. The Metadata is left
// untouched.
func Decode(raw *RawFrame, cal *Calibration, dst *Frame) error {
	if !cal.Ready() {
		return ErrNoCalibration
	}
	if len(dst.Pix) != Width*Height {
		dst.Pix = make([]float64, Width*Height)
	}
	raw.crop(dst.Pix)
	for i, b := range cal.background {
		dst.Pix[i] = (dst.Pix[i]-b)*gain + offset
	}
	dst.updateStats()
	return nil
}

// FixDeadPixels replaces each dead pixel with the median of its 3x3
// neighbourhood, itself included. The neighbourhood is clipped at the borders.
func FixDeadPixels(f *Frame, dead []image.Point) {
	if len(dead) == 0 {
		return
	}
	var buf [9]float64
	for _, p := range dead {
		n := buf[:0]
		for y := p.Y - 1; y <= p.Y+1; y++ {
			if y < 0 || y >= Height {
				continue
			}
			for x := p.X - 1; x <= p.X+1; x++ {
				if x < 0 || x >= Width {
					continue
				}
				n = append(n, f.Pix[y*Width+x])
			}
		}
		f.Pix[p.Y*Width+p.X] = median(n)
	}
	f.updateStats()
}

// median sorts v in place.
func median(v []float64) float64 {
	sort.Float64s(v)
	m := len(v) / 2
	if len(v)&1 == 1 {
		return v[m]
	}
	return (v[m-1] + v[m]) / 2
}
