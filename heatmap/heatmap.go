// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package heatmap renders temperature frames.
package heatmap

import (
	"image"
	"image/color"
	"math"

	"github.com/maruel/go-seek/seek"
)

// AGCLinear reduces the frame to 8 bits by mapping [Min, Max] linearly to
// [0, 255] without gamma.
func AGCLinear(f *seek.Frame) *image.Gray {
	dst := image.NewGray(f.Bounds())
	scale := span(f)
	for y := 0; y < seek.Height; y++ {
		for x := 0; x < seek.Width; x++ {
			dst.Pix[y*dst.Stride+x] = uint8(math.Round(clamp((f.At(x, y)-f.Min)*scale) * 255))
		}
	}
	return dst
}

// PseudoRGB renders the frame with the plasma palette, cold being dark blue
// and hot being yellow.
func PseudoRGB(f *seek.Frame) *image.NRGBA {
	dst := image.NewNRGBA(f.Bounds())
	scale := span(f)
	for y := 0; y < seek.Height; y++ {
		for x := 0; x < seek.Width; x++ {
			c := Plasma((f.At(x, y) - f.Min) * scale)
			i := y*dst.Stride + 4*x
			dst.Pix[i] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = c.A
		}
	}
	return dst
}

// Plasma returns the color for v in [0, 1]. Values outside are clamped.
func Plasma(v float64) color.NRGBA {
	v = clamp(v)
	if v == 1 {
		return plasma[len(plasma)-1]
	}
	p := v * float64(len(plasma)-1)
	i := int(p)
	frac := p - float64(i)
	a := plasma[i]
	b := plasma[i+1]
	return color.NRGBA{
		R: lerp(a.R, b.R, frac),
		G: lerp(a.G, b.G, frac),
		B: lerp(a.B, b.B, frac),
		A: 255,
	}
}

// Min returns the coldest point of the frame.
func Min(f *seek.Frame) image.Point {
	var p image.Point
	for y := 0; y < seek.Height; y++ {
		for x := 0; x < seek.Width; x++ {
			if f.At(x, y) < f.At(p.X, p.Y) {
				p = image.Point{x, y}
			}
		}
	}
	return p
}

// Max returns the hottest point of the frame.
func Max(f *seek.Frame) image.Point {
	var p image.Point
	for y := 0; y < seek.Height; y++ {
		for x := 0; x < seek.Width; x++ {
			if f.At(x, y) > f.At(p.X, p.Y) {
				p = image.Point{x, y}
			}
		}
	}
	return p
}

//

// plasma is sampled from matplotlib's colormap of the same name.
var plasma = []color.NRGBA{
	{13, 8, 135, 255},
	{84, 2, 163, 255},
	{139, 10, 165, 255},
	{185, 50, 137, 255},
	{219, 92, 104, 255},
	{244, 136, 73, 255},
	{254, 188, 43, 255},
	{240, 249, 33, 255},
}

// span returns the factor to map [Min, Max] to [0, 1]. A flat frame maps to 0.
func span(f *seek.Frame) float64 {
	if d := f.Max - f.Min; d > 0 {
		return 1 / d
	}
	return 0
}

func clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func lerp(a, b uint8, frac float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*frac))
}
