// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package heatmap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/maruel/go-seek/seek"
	"github.com/x448/float16"
)

// EncodeFloat16 serializes the temperatures as IEEE 754 half precision
// floats, which keeps 0.03°C resolution in the usual range of the camera.
//
// The format is the width and height as uint16 followed by the row-major
// pixels, all little endian.
func EncodeFloat16(f *seek.Frame) []byte {
	b := make([]byte, 4+2*len(f.Pix))
	binary.LittleEndian.PutUint16(b, seek.Width)
	binary.LittleEndian.PutUint16(b[2:], seek.Height)
	for i, v := range f.Pix {
		binary.LittleEndian.PutUint16(b[4+2*i:], float16.Fromfloat32(float32(v)).Bits())
	}
	return b
}

// DecodeFloat16 is the reverse of EncodeFloat16. Min and Max are
// recalculated; Metadata is not part of the encoding.
func DecodeFloat16(b []byte, dst *seek.Frame) error {
	if len(b) < 4 {
		return errors.New("heatmap: short buffer")
	}
	w := int(binary.LittleEndian.Uint16(b))
	h := int(binary.LittleEndian.Uint16(b[2:]))
	if w != seek.Width || h != seek.Height {
		return fmt.Errorf("heatmap: unexpected size %dx%d", w, h)
	}
	if len(b) != 4+2*w*h {
		return fmt.Errorf("heatmap: expected %d bytes, got %d", 4+2*w*h, len(b))
	}
	if len(dst.Pix) != w*h {
		dst.Pix = make([]float64, w*h)
	}
	dst.Min = math.Inf(1)
	dst.Max = math.Inf(-1)
	for i := range dst.Pix {
		v := float64(float16.Frombits(binary.LittleEndian.Uint16(b[4+2*i:])).Float32())
		dst.Pix[i] = v
		dst.Min = math.Min(dst.Min, v)
		dst.Max = math.Max(dst.Max, v)
	}
	return nil
}
