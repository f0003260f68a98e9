// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package seek

import (
	"errors"
	"fmt"
)

// ErrDeviceNotFound is returned when no camera is connected.
var ErrDeviceNotFound = errors.New("seek: device not found")

// ErrNoCalibration is returned when an image frame is received before any
// calibration frame.
var ErrNoCalibration = errors.New("seek: no calibration frame received yet")

// ProtocolError is returned when a control transfer of the handshake failed or
// transferred less than expected. The session cannot proceed.
type ProtocolError struct {
	Step    string
	Command Command
	Want    int
	Got     int
	Err     error // May be nil on short transfer.
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("seek: %s: %s failed: %s", e.Step, e.Command, e.Err)
	}
	return fmt.Sprintf("seek: %s: %s transferred %d bytes, expected %d", e.Step, e.Command, e.Got, e.Want)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IOError is returned when a frame could not be read. It only affects the
// current frame; the next one can be tried.
type IOError struct {
	Op   string // "start" or "read".
	Read int    // Index of the bulk read, 0 to 3.
	Want int
	Got  int
	Err  error // May be nil on short read.
}

func (e *IOError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("seek: %s %d: %s", e.Op, e.Read, e.Err)
	}
	return fmt.Sprintf("seek: %s %d: got %d bytes, expected %d", e.Op, e.Read, e.Got, e.Want)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// StatusError is returned for frames with an unknown status byte. The frame is
// dropped.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("seek: unrecognized frame status %d", uint8(e.Status))
}
