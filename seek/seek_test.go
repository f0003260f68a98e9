// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package seek

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"reflect"
	"testing"
	"time"

	"github.com/maruel/go-seek/seek/seektest"
)

func TestNew(t *testing.T) {
	tr := &seektest.Transport{}
	d := newDev(t, tr)
	if !reflect.DeepEqual(tr.Ops, initSequence()) {
		t.Fatalf("unexpected sequence:\n%v\n%v", tr.Ops, initSequence())
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if !tr.Closed() {
		t.Fatal("transport not closed")
	}
}

func TestNew_info(t *testing.T) {
	tr := &seektest.Transport{
		Replies: map[uint8][]byte{
			uint8(GetFirmwareInfo):    {1, 2, 3, 4},
			uint8(ReadChipID):         {5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
			uint8(GetFactorySettings): {0xAA},
			uint8(GetOperationMode):   {0x01, 0x02},
		},
	}
	d := newDev(t, tr)
	i := d.Info()
	if !bytes.Equal(i.FirmwareInfo, []byte{1, 2, 3, 4}) {
		t.Fatal(i.FirmwareInfo)
	}
	if len(i.ChipID) != 12 || i.ChipID[11] != 16 {
		t.Fatal(i.ChipID)
	}
	for j, l := range []int{0x40, 0x40, 0x18, 0x0C} {
		if len(i.FactorySettings[j]) != l || i.FactorySettings[j][0] != 0xAA {
			t.Fatal(j, i.FactorySettings[j])
		}
	}
	if !bytes.Equal(i.OperationMode[1], []byte{0x01, 0x02}) {
		t.Fatal(i.OperationMode)
	}
}

func TestNew_recovery(t *testing.T) {
	tr := &seektest.Transport{
		ControlFaults: map[int]seektest.Fault{0: {Err: errors.New("pipe error")}},
	}
	newDev(t, tr)
	enable := out(TargetPlatform, 0x01)
	idle := out(SetOperationMode, 0x00, 0x00)
	expected := append([]seektest.IO{enable, idle, idle, idle}, initSequence()...)
	if !reflect.DeepEqual(tr.Ops, expected) {
		t.Fatalf("unexpected sequence:\n%v\n%v", tr.Ops, expected)
	}
}

func TestNew_fail(t *testing.T) {
	data := []struct {
		name   string
		faults map[int]seektest.Fault
		step   string
		cmd    Command
	}{
		{
			"retry",
			map[int]seektest.Fault{0: {Err: errors.New("pipe")}, 4: {Err: errors.New("pipe")}},
			"enable retry",
			TargetPlatform,
		},
		{
			"deinit",
			map[int]seektest.Fault{0: {Err: errors.New("pipe")}, 2: {N: 1}},
			"deinit",
			SetOperationMode,
		},
		{
			"short reply",
			map[int]seektest.Fault{2: {N: 3}},
			"firmware info",
			GetFirmwareInfo,
		},
		{
			"factory settings",
			map[int]seektest.Fault{9: {Err: errors.New("stall")}},
			"factory settings 2",
			GetFactorySettings,
		},
		{
			"stream",
			map[int]seektest.Fault{15: {N: 0}},
			"stream",
			SetOperationMode,
		},
	}
	for _, line := range data {
		tr := &seektest.Transport{ControlFaults: line.faults}
		d, err := New(tr, &Opts{Logger: log.New(io.Discard, "", 0)})
		if d != nil {
			t.Fatal(line.name)
		}
		var p *ProtocolError
		if !errors.As(err, &p) {
			t.Fatalf("%s: %v", line.name, err)
		}
		if p.Step != line.step || p.Command != line.cmd {
			t.Fatalf("%s: %#v", line.name, p)
		}
	}
}

func TestReadRawFrame(t *testing.T) {
	frame := seektest.Frame(3, func(row, col int) int16 { return int16(row - col) })
	tr := &seektest.Transport{Frames: [][]byte{frame}}
	d := newDev(t, tr)
	raw, err := d.ReadRawFrame(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw[:], frame) {
		t.Fatal("frame mismatch")
	}
	if raw.Status() != StatusImage {
		t.Fatal(raw.Status())
	}
	last := tr.Ops[len(tr.Ops)-1]
	if expected := out(StartGetImageTransfer, 0xC0, 0x7E, 0x00, 0x00); !reflect.DeepEqual(last, expected) {
		t.Fatalf("%v != %v", last, expected)
	}
}

func TestReadRawFrame_fail(t *testing.T) {
	frame := seektest.Uniform(3, 1)
	data := []struct {
		tr   *seektest.Transport
		op   string
		read int
		got  int
	}{
		{&seektest.Transport{Frames: [][]byte{frame}, BulkFaults: map[int]seektest.Fault{2: {N: 10}}}, "read", 2, 10},
		{&seektest.Transport{Frames: [][]byte{frame}, BulkFaults: map[int]seektest.Fault{0: {Err: errors.New("timeout")}}}, "read", 0, 0},
		{&seektest.Transport{}, "read", 0, 0},
		{&seektest.Transport{Frames: [][]byte{frame}, ControlFaults: map[int]seektest.Fault{17: {N: 2}}}, "start", 0, 2},
	}
	for i, line := range data {
		d := newDev(t, line.tr)
		_, err := d.ReadRawFrame(context.Background())
		var e *IOError
		if !errors.As(err, &e) {
			t.Fatalf("%d: %v", i, err)
		}
		if e.Op != line.op || e.Read != line.read || e.Got != line.got {
			t.Fatalf("%d: %#v", i, e)
		}
	}
}

func TestReadRawFrame_cancelled(t *testing.T) {
	tr := &seektest.Transport{Frames: [][]byte{seektest.Uniform(3, 1)}}
	d := newDev(t, tr)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.ReadRawFrame(ctx); err != context.Canceled {
		t.Fatal(err)
	}
	if len(tr.Ops) != len(initSequence()) {
		t.Fatal("frame was requested")
	}
}

func TestNextFrame(t *testing.T) {
	tr := &seektest.Transport{
		Frames: [][]byte{
			seektest.Uniform(3, 1100), // Before calibration.
			seektest.Uniform(7, 1100), // Unknown.
			seektest.Uniform(1, 1000),
			seektest.Uniform(3, 1100),
		},
	}
	d := newDev(t, tr)
	f := NewFrame()
	if err := d.NextFrame(context.Background(), f); err != nil {
		t.Fatal(err)
	}
	assertUniform(t, f, 43.79)
	if f.Metadata.FrameCount != 4 || f.Metadata.Calibrations != 1 {
		t.Fatalf("%#v", f.Metadata)
	}
	expected := Stats{GoodFrames: 1, CalibrationFrames: 1, UnrecognizedFrames: 1, SkippedFrames: 1}
	if s := d.Stats(); !reflect.DeepEqual(s, expected) {
		t.Fatalf("%#v", s)
	}
}

func TestNextFrame_retry(t *testing.T) {
	tr := &seektest.Transport{
		Frames:     [][]byte{seektest.Uniform(1, 1000), seektest.Uniform(3, 1000)},
		BulkFaults: map[int]seektest.Fault{4: {Err: errors.New("timeout")}},
	}
	d := newDev(t, tr)
	f := NewFrame()
	if err := d.NextFrame(context.Background(), f); err != nil {
		t.Fatal(err)
	}
	assertUniform(t, f, 42)
	s := d.Stats()
	if s.Retries != 1 || s.TransferFails != 1 || s.LastFail != nil || s.GoodFrames != 1 {
		t.Fatalf("%#v", s)
	}
}

func TestNextFrame_giveUp(t *testing.T) {
	tr := &seektest.Transport{Frames: [][]byte{seektest.Uniform(1, 1000)}}
	d := newDev(t, tr)
	err := d.NextFrame(context.Background(), NewFrame())
	var e *IOError
	if !errors.As(err, &e) || !errors.Is(err, seektest.ErrNoFrame) {
		t.Fatal(err)
	}
	s := d.Stats()
	if s.TransferFails != 3 || s.Retries != 2 || s.LastFail == nil {
		t.Fatalf("%#v", s)
	}
}

func TestNextFrame_cancelled(t *testing.T) {
	tr := &seektest.Transport{}
	d, err := New(tr, &Opts{
		Logger: log.New(io.Discard, "", 0),
		Policy: Policy{MaxFailures: 100, Backoff: time.Hour},
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := d.NextFrame(ctx, NewFrame()); err != context.DeadlineExceeded {
		t.Fatal(err)
	}
}

func TestStream(t *testing.T) {
	frames := [][]byte{seektest.Uniform(1, 1000)}
	for i := 0; i < 5; i++ {
		frames = append(frames, seektest.Uniform(3, int16(1000+100*i)))
	}
	tr := &seektest.Transport{Frames: frames}
	d := newDev(t, tr)
	c := make(chan *Frame, 1)
	// Nobody reads, the oldest frames are dropped.
	var e *IOError
	if err := d.Stream(context.Background(), c); !errors.As(err, &e) {
		t.Fatal(err)
	}
	if len(c) != 1 {
		t.Fatal(len(c))
	}
	f := <-c
	if f.Metadata.FrameCount != 6 {
		t.Fatal(f.Metadata.FrameCount)
	}
	assertUniform(t, f, 400*0.0179+42)
}

func TestStream_cancelled(t *testing.T) {
	d := newDev(t, &seektest.Transport{Sensor: seektest.NewSensor(1)})
	ctx, cancel := context.WithCancel(context.Background())
	// Nobody reads.
	c := make(chan *Frame, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- d.Stream(ctx, c)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		if err != context.Canceled {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stream didn't return")
	}
	if len(c) != 1 {
		t.Fatal(len(c))
	}
}

func TestStream_unbuffered(t *testing.T) {
	d := newDev(t, &seektest.Transport{Sensor: seektest.NewSensor(1)})
	if err := d.Stream(context.Background(), make(chan *Frame)); err != errUnbuffered {
		t.Fatal(err)
	}
	if s := d.Stats(); s.GoodFrames != 0 {
		t.Fatalf("%#v", s)
	}
}

func TestAcquire(t *testing.T) {
	tr := &seektest.Transport{Frames: [][]byte{seektest.Uniform(1, 1000), seektest.Uniform(9, 1000)}}
	d := newDev(t, tr)
	// Acquire allocates the pixels.
	f := &Frame{}
	data := []struct {
		o     Outcome
		isErr bool
	}{
		{Calibrated, false},
		{Unrecognized, true},
		{NoFrame, true},
	}
	for i, line := range data {
		o, err := d.Acquire(context.Background(), f)
		if o != line.o || (err != nil) != line.isErr {
			t.Fatalf("%d: %s %v", i, o, err)
		}
	}
	var e *IOError
	if _, err := d.Acquire(context.Background(), f); !errors.As(err, &e) {
		t.Fatal(err)
	}
	if NoFrame.String() != "NoFrame" || Unrecognized.String() != "Unrecognized" {
		t.Fatal("String()")
	}
}

//

func newDev(t *testing.T, tr *seektest.Transport) *Dev {
	d, err := New(tr, &Opts{
		Logger: log.New(io.Discard, "", 0),
		Policy: Policy{MaxFailures: 3, Backoff: time.Millisecond},
	})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func out(c Command, data ...byte) seektest.IO {
	return seektest.IO{RequestType: 0x41, Request: uint8(c), W: data}
}

func in(c Command, length int) seektest.IO {
	return seektest.IO{RequestType: 0xC1, Request: uint8(c), Length: length}
}

// initSequence is the handshake as captured from the vendor software.
func initSequence() []seektest.IO {
	return []seektest.IO{
		out(0x54, 0x01),
		out(0x3C, 0x00, 0x00),
		in(0x4E, 4),
		in(0x36, 12),
		out(0x56, 0x20, 0x00, 0x30, 0x00, 0x00, 0x00),
		in(0x58, 0x40),
		out(0x56, 0x20, 0x00, 0x50, 0x00, 0x00, 0x00),
		in(0x58, 0x40),
		out(0x56, 0x0C, 0x00, 0x70, 0x00, 0x00, 0x00),
		in(0x58, 0x18),
		out(0x56, 0x06, 0x00, 0x08, 0x00, 0x00, 0x00),
		in(0x58, 0x0C),
		out(0x3E, 0x08, 0x00),
		in(0x3D, 2),
		out(0x3E, 0x08, 0x00),
		out(0x3C, 0x01, 0x00),
		in(0x3D, 2),
	}
}

func assertUniform(t *testing.T, f *Frame, expected float64) {
	t.Helper()
	if len(f.Pix) != Width*Height {
		t.Fatal(len(f.Pix))
	}
	for i, v := range f.Pix {
		if d := v - expected; d > 1e-9 || d < -1e-9 {
			t.Fatalf("pixel (%d, %d) = %g, expected %g", i%Width, i/Width, v, expected)
		}
	}
}
