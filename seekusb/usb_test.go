// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package seekusb

import (
	"testing"

	"github.com/google/gousb"
)

func TestOutEndpoint(t *testing.T) {
	s := &gousb.InterfaceSetting{
		Endpoints: map[gousb.EndpointAddress]gousb.EndpointDesc{
			0x81: {Address: 0x81, Number: 1, Direction: gousb.EndpointDirectionIn},
			0x02: {Address: 0x02, Number: 2, Direction: gousb.EndpointDirectionOut},
			0x01: {Address: 0x01, Number: 1, Direction: gousb.EndpointDirectionOut},
		},
	}
	e, err := outEndpoint(s)
	if err != nil {
		t.Fatal(err)
	}
	if e.Address != 0x01 {
		t.Fatal(e)
	}
}

func TestOutEndpoint_missing(t *testing.T) {
	s := &gousb.InterfaceSetting{
		Endpoints: map[gousb.EndpointAddress]gousb.EndpointDesc{
			0x81: {Address: 0x81, Number: 1, Direction: gousb.EndpointDirectionIn},
		},
	}
	if _, err := outEndpoint(s); err == nil {
		t.Fatal("expected error")
	}
}
