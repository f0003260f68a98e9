// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package seekusb connects to a Seek Thermal camera via libusb.
package seekusb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
	"github.com/maruel/go-seek/seek"
)

// Opts is optional.
type Opts struct {
	ControlTimeout time.Duration // Default: 1s.
}

// Transport is an opened camera. It implements seek.Transport.
type Transport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	in   *gousb.InEndpoint

	mu     sync.Mutex
	closed bool
}

// Open opens the first camera found on the bus.
//
// Returns seek.ErrDeviceNotFound if none is connected.
func Open(opts *Opts) (*Transport, error) {
	timeout := time.Second
	if opts != nil && opts.ControlTimeout != 0 {
		timeout = opts.ControlTimeout
	}
	t := &Transport{ctx: gousb.NewContext()}
	if err := t.open(timeout); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// Control implements seek.Transport.
func (t *Transport) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	return t.dev.Control(rType, request, val, idx, data)
}

// ReadBulk implements seek.Transport.
func (t *Transport) ReadBulk(ctx context.Context, b []byte) (int, error) {
	return t.in.ReadContext(ctx, b)
}

// Close releases the interface and the device.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("seekusb: already closed")
	}
	t.closed = true
	var err error
	if t.intf != nil {
		t.intf.Close()
	}
	if t.cfg != nil {
		err = t.cfg.Close()
	}
	if t.dev != nil {
		if err2 := t.dev.Close(); err == nil {
			err = err2
		}
	}
	if err2 := t.ctx.Close(); err == nil {
		err = err2
	}
	return err
}

func (t *Transport) String() string {
	if t.dev == nil {
		return "seekusb"
	}
	return t.dev.String()
}

//

// bulkIn is endpoint 0x81.
const bulkIn = 1

func (t *Transport) open(timeout time.Duration) error {
	var err error
	if t.dev, err = t.ctx.OpenDeviceWithVIDPID(seek.VendorID, seek.ProductID); err != nil {
		return fmt.Errorf("seekusb: %w", err)
	}
	if t.dev == nil {
		return seek.ErrDeviceNotFound
	}
	if err = t.dev.SetAutoDetach(true); err != nil {
		return fmt.Errorf("seekusb: auto detach: %w", err)
	}
	t.dev.ControlTimeout = timeout
	if t.cfg, err = t.dev.Config(1); err != nil {
		return fmt.Errorf("seekusb: config: %w", err)
	}
	if t.intf, err = t.cfg.Interface(0, 0); err != nil {
		return fmt.Errorf("seekusb: interface: %w", err)
	}
	if _, err = outEndpoint(&t.intf.Setting); err != nil {
		return err
	}
	if t.in, err = t.intf.InEndpoint(bulkIn); err != nil {
		return fmt.Errorf("seekusb: endpoint: %w", err)
	}
	return nil
}

// outEndpoint returns the lowest numbered OUT endpoint of the setting.
//
// The driver never writes to it but its absence means this is not the
// expected device.
func outEndpoint(s *gousb.InterfaceSetting) (gousb.EndpointDesc, error) {
	var out gousb.EndpointDesc
	found := false
	for _, e := range s.Endpoints {
		if e.Direction == gousb.EndpointDirectionOut && (!found || e.Number < out.Number) {
			out = e
			found = true
		}
	}
	if !found {
		return out, errors.New("seekusb: no OUT endpoint")
	}
	return out, nil
}

var _ seek.Transport = &Transport{}
