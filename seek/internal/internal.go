// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package internal describes the raw frame layout sent over the bulk endpoint.
//
// It is an implementation detail of the protocol.
package internal

import "encoding/binary"

// Sensor geometry, as sent by the camera.
const (
	Width  = 208
	Height = 156
)

// Bulk transfer layout.
const (
	ChunkSize = 0x3F60
	Chunks    = 4
	FrameSize = Chunks * ChunkSize // 64896 bytes, exactly Width*Height int16.

	// StatusOffset is the byte carrying the frame type. It is the low byte of
	// pixel StatusWord.
	StatusOffset = 20
	StatusWord   = StatusOffset / 2
)

// Pixel returns the i-th signed 16 bits little endian pixel.
func Pixel(raw []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(raw[2*i:]))
}

// PutPixel encodes the i-th pixel.
func PutPixel(raw []byte, i int, v int16) {
	binary.LittleEndian.PutUint16(raw[2*i:], uint16(v))
}
