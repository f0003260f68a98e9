// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package seektest implements a fake Seek Thermal camera.
package seektest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/maruel/go-seek/seek/internal"
)

// ErrNoFrame is returned by ReadBulk when no frame is queued and no Sensor is
// set.
var ErrNoFrame = errors.New("seektest: no frame to send")

// IO is one recorded control transfer.
type IO struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	W           []byte // Payload for host to device requests.
	Length      int    // Requested length for device to host requests.
}

// Fault overrides the result of one transfer.
type Fault struct {
	N   int
	Err error
}

// Transport is a fake camera. It records every control transfer and serves
// frames over the bulk endpoint.
//
// The zero value accepts all control transfers and has no frame to send.
type Transport struct {
	Ops           []IO             // Recorded control transfers.
	Replies       map[uint8][]byte // Data returned to device to host requests, keyed by request. Zeros by default.
	ControlFaults map[int]Fault    // Keyed by index in Ops.
	BulkFaults    map[int]Fault    // Keyed by bulk read index, counting from 0.
	Frames        [][]byte         // Frames to send, in order.
	Sensor        *Sensor          // Used once Frames is exhausted.

	mu      sync.Mutex
	bulk    int
	pending []byte
	closed  bool
}

// Control implements seek.Transport.
func (t *Transport) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	op := IO{RequestType: rType, Request: request, Value: val, Index: idx}
	if rType&0x80 == 0 {
		op.W = append([]byte{}, data...)
	} else {
		op.Length = len(data)
	}
	t.Ops = append(t.Ops, op)
	if f, ok := t.ControlFaults[len(t.Ops)-1]; ok {
		return f.N, f.Err
	}
	if rType&0x80 != 0 {
		for i := range data {
			data[i] = 0
		}
		copy(data, t.Replies[request])
	}
	return len(data), nil
}

// ReadBulk implements seek.Transport.
//
// A fault discards the rest of the frame being sent.
func (t *Transport) ReadBulk(ctx context.Context, b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	i := t.bulk
	t.bulk++
	if f, ok := t.BulkFaults[i]; ok {
		t.pending = nil
		return f.N, f.Err
	}
	if len(t.pending) == 0 {
		switch {
		case len(t.Frames) != 0:
			t.pending = t.Frames[0]
			t.Frames = t.Frames[1:]
		case t.Sensor != nil:
			t.pending = t.Sensor.Next()
		default:
			return 0, ErrNoFrame
		}
	}
	n := copy(b, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

// Close implements seek.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return io.ErrClosedPipe
	}
	t.closed = true
	return nil
}

// Closed returns true once Close was called.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Frame returns a raw frame with the given status where each pixel is set by
// pix. row and col are in the uncropped 156x208 grid.
//
// Like the real camera, the status byte overwrites the low byte of pixel 10.
func Frame(status uint8, pix func(row, col int) int16) []byte {
	b := make([]byte, internal.FrameSize)
	for row := 0; row < internal.Height; row++ {
		for col := 0; col < internal.Width; col++ {
			internal.PutPixel(b, row*internal.Width+col, pix(row, col))
		}
	}
	b[internal.StatusOffset] = status
	return b
}

// Uniform returns a raw frame where all pixels are v.
func Uniform(status uint8, v int16) []byte {
	return Frame(status, func(int, int) int16 { return v })
}
