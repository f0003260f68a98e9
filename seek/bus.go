// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package seek

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/maruel/go-seek/seek/internal"
)

// Transport is the USB device as seen by the driver.
//
// seekusb implements it on top of libusb and seektest implements an in-memory
// fake.
type Transport interface {
	io.Closer
	// Control issues a control transfer. For device to host requests, data is
	// filled up to its length. Returns the number of bytes transferred.
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	// ReadBulk reads from the bulk IN endpoint. It must return when ctx is done.
	ReadBulk(ctx context.Context, b []byte) (int, error)
}

// Command is a vendor request code sent over the control endpoint.
type Command uint8

// Commands used by the driver. Most of the names come from the community
// reverse engineering of the protocol; the replies are not interpreted.
const (
	ReadChipID                 Command = 0x36 // 12 bytes IN
	SetOperationMode           Command = 0x3C // 2 bytes OUT
	GetOperationMode           Command = 0x3D // 2 bytes IN
	SetImageProcessingMode     Command = 0x3E // 2 bytes OUT
	GetFirmwareInfo            Command = 0x4E // 4 bytes IN
	StartGetImageTransfer      Command = 0x53 // 4 bytes OUT, pixel count
	TargetPlatform             Command = 0x54 // 1 byte OUT
	SetFactorySettingsFeatures Command = 0x56 // 6 bytes OUT
	GetFactorySettings         Command = 0x58 // variable IN
)

func (c Command) String() string {
	switch c {
	case ReadChipID:
		return "ReadChipID"
	case SetOperationMode:
		return "SetOperationMode"
	case GetOperationMode:
		return "GetOperationMode"
	case SetImageProcessingMode:
		return "SetImageProcessingMode"
	case GetFirmwareInfo:
		return "GetFirmwareInfo"
	case StartGetImageTransfer:
		return "StartGetImageTransfer"
	case TargetPlatform:
		return "TargetPlatform"
	case SetFactorySettingsFeatures:
		return "SetFactorySettingsFeatures"
	case GetFactorySettings:
		return "GetFactorySettings"
	default:
		return fmt.Sprintf("Command(0x%02X)", uint8(c))
	}
}

// Request types: vendor request to the interface.
const (
	RequestOut uint8 = 0x41
	RequestIn  uint8 = 0xC1
)

// Info holds the replies received during the handshake. Their meaning is
// unknown; they are kept for diagnostic.
type Info struct {
	FirmwareInfo    []byte    // GetFirmwareInfo, 4 bytes.
	ChipID          []byte    // ReadChipID, 12 bytes.
	FactorySettings [4][]byte // GetFactorySettings, one per factorySettings entry.
	OperationMode   [2][]byte // GetOperationMode, before and after streaming is enabled.
}

// factorySettings are the regions read during the handshake.
var factorySettings = [4]struct {
	selector []byte
	length   int
}{
	{[]byte{0x20, 0x00, 0x30, 0x00, 0x00, 0x00}, 0x40},
	{[]byte{0x20, 0x00, 0x50, 0x00, 0x00, 0x00}, 0x40},
	{[]byte{0x0C, 0x00, 0x70, 0x00, 0x00, 0x00}, 0x18},
	{[]byte{0x06, 0x00, 0x08, 0x00, 0x00, 0x00}, 0x0C},
}

var (
	enable       = []byte{0x01}
	modeIdle     = []byte{0x00, 0x00}
	modeStream   = []byte{0x01, 0x00}
	imageProcess = []byte{0x08, 0x00}
)

// frameRequest is the StartGetImageTransfer payload: the number of pixels to
// send.
var frameRequest = func() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, internal.Width*internal.Height)
	return b
}()

// handshake brings the camera into streaming mode. It must be run once per
// session.
func (d *Dev) handshake() error {
	if err := d.send("enable", TargetPlatform, enable); err != nil {
		d.opts.Logger.Printf("seek: enable failed, resetting: %s", err)
		if err := d.deinit(); err != nil {
			return err
		}
		if err := d.send("enable retry", TargetPlatform, enable); err != nil {
			return err
		}
	}
	if err := d.send("idle", SetOperationMode, modeIdle); err != nil {
		return err
	}
	var err error
	if d.info.FirmwareInfo, err = d.receive("firmware info", GetFirmwareInfo, 4); err != nil {
		return err
	}
	d.opts.Logger.Printf("seek: firmware info % x", d.info.FirmwareInfo)
	if d.info.ChipID, err = d.receive("chip id", ReadChipID, 12); err != nil {
		return err
	}
	d.opts.Logger.Printf("seek: chip id % x", d.info.ChipID)
	for i, f := range factorySettings {
		step := fmt.Sprintf("factory settings %d", i)
		if err := d.send(step, SetFactorySettingsFeatures, f.selector); err != nil {
			return err
		}
		if d.info.FactorySettings[i], err = d.receive(step, GetFactorySettings, f.length); err != nil {
			return err
		}
	}
	if err := d.send("image processing", SetImageProcessingMode, imageProcess); err != nil {
		return err
	}
	if d.info.OperationMode[0], err = d.receive("operation mode", GetOperationMode, 2); err != nil {
		return err
	}
	if err := d.send("image processing", SetImageProcessingMode, imageProcess); err != nil {
		return err
	}
	if err := d.send("stream", SetOperationMode, modeStream); err != nil {
		return err
	}
	if d.info.OperationMode[1], err = d.receive("operation mode", GetOperationMode, 2); err != nil {
		return err
	}
	d.opts.Logger.Printf("seek: operation mode % x -> % x", d.info.OperationMode[0], d.info.OperationMode[1])
	return nil
}

// deinit puts the camera back in idle mode.
func (d *Dev) deinit() error {
	for i := 0; i < 3; i++ {
		if err := d.send("deinit", SetOperationMode, modeIdle); err != nil {
			return err
		}
	}
	return nil
}

// send issues a host to device request that must transfer the whole payload.
func (d *Dev) send(step string, cmd Command, data []byte) error {
	n, err := d.t.Control(RequestOut, uint8(cmd), 0, 0, data)
	if err != nil || n != len(data) {
		return &ProtocolError{Step: step, Command: cmd, Want: len(data), Got: n, Err: err}
	}
	return nil
}

// receive issues a device to host request that must return exactly length
// bytes.
func (d *Dev) receive(step string, cmd Command, length int) ([]byte, error) {
	b := make([]byte, length)
	n, err := d.t.Control(RequestIn, uint8(cmd), 0, 0, b)
	if err != nil || n != length {
		return nil, &ProtocolError{Step: step, Command: cmd, Want: length, Got: n, Err: err}
	}
	return b, nil
}
