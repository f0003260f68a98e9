// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package seek reads temperature frames from a Seek Thermal USB camera
// (289d:0010).
//
// The camera is undocumented. The handshake was captured from the vendor
// application and is replayed verbatim. Once streaming, each frame is requested
// with a control transfer and read as four bulk transfers. The camera
// periodically closes its shutter and sends a calibration frame, used as the
// background subtracted from the following image frames.
//
// References:
//   https://github.com/lod/seek-thermal-documentation
//   https://github.com/maartenvds/libseek-thermal
package seek

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/maruel/go-seek/seek/internal"
)

// VendorID and ProductID identify the camera on the USB bus.
const (
	VendorID  = 0x289D
	ProductID = 0x0010
)

// Logger is used for diagnostic messages. *log.Logger and *logrus.Logger
// implement it.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Policy decides how NextFrame handles transfer failures.
type Policy struct {
	MaxFailures int           // Consecutive failed frames before giving up. Default: 5.
	Backoff     time.Duration // Delay after the first failure, doubled at each consecutive one. Default: 200ms.
	MaxBackoff  time.Duration // Default: 2s.
}

// Opts is optional. The zero value selects the defaults.
type Opts struct {
	ReadTimeout   time.Duration // Timeout of each bulk read. Default: 1s.
	Policy        Policy
	FixDeadPixels bool   // Replace dead pixels with the median of their neighbours.
	Logger        Logger // Default: the log package.
}

// Stats are the counters since the session started.
type Stats struct {
	LastFail           error
	GoodFrames         int
	CalibrationFrames  int
	UnrecognizedFrames int
	SkippedFrames      int // Image frames received before calibration.
	TransferFails      int
	Retries            int
}

// Dev is a Seek Thermal camera in streaming mode.
//
// It is not safe for concurrent use, except for Stats() and Info().
type Dev struct {
	t    Transport
	opts Opts
	info Info
	cal  Calibration
	raw  RawFrame
	seq  int

	mu    sync.Mutex
	stats Stats
}

// New runs the handshake over t and returns a camera ready to stream.
//
// On success t is owned by the returned Dev and is closed by Close(). On
// failure the caller keeps ownership of t.
func New(t Transport, opts *Opts) (*Dev, error) {
	d := &Dev{t: t}
	if opts != nil {
		d.opts = *opts
	}
	if d.opts.ReadTimeout == 0 {
		d.opts.ReadTimeout = time.Second
	}
	p := &d.opts.Policy
	if p.MaxFailures == 0 {
		p.MaxFailures = 5
	}
	if p.Backoff == 0 {
		p.Backoff = 200 * time.Millisecond
	}
	if p.MaxBackoff == 0 {
		p.MaxBackoff = 2 * time.Second
	}
	if d.opts.Logger == nil {
		d.opts.Logger = stdLogger{}
	}
	if err := d.handshake(); err != nil {
		return nil, err
	}
	return d, nil
}

// Close closes the transport.
func (d *Dev) Close() error {
	return d.t.Close()
}

// Info returns the replies received during the handshake.
func (d *Dev) Info() Info {
	return d.info
}

// Calibration returns the calibration state. It must not be modified while
// frames are being read.
func (d *Dev) Calibration() *Calibration {
	return &d.cal
}

// Stats returns a copy of the counters.
func (d *Dev) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// ReadRawFrame requests a frame and reads it.
//
// ctx is only checked before the frame is requested: once started, the four
// bulk reads are completed, each bounded by Opts.ReadTimeout, so the endpoint
// is never left mid-frame. The returned frame is reused at the next call.
func (d *Dev) ReadRawFrame(ctx context.Context) (*RawFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n, err := d.t.Control(RequestOut, uint8(StartGetImageTransfer), 0, 0, frameRequest); err != nil || n != len(frameRequest) {
		return nil, &IOError{Op: "start", Want: len(frameRequest), Got: n, Err: err}
	}
	for i := 0; i < internal.Chunks; i++ {
		b := d.raw[i*internal.ChunkSize : (i+1)*internal.ChunkSize]
		c, cancel := context.WithTimeout(context.Background(), d.opts.ReadTimeout)
		n, err := d.t.ReadBulk(c, b)
		cancel()
		if err != nil || n != len(b) {
			return nil, &IOError{Op: "read", Read: i, Want: len(b), Got: n, Err: err}
		}
	}
	d.seq++
	return &d.raw, nil
}

// Acquire runs one cycle: it reads one frame and processes it.
//
// Only when Temperature is returned with a nil error was dst filled. Any other
// result means there is no frame this cycle. NoFrame is returned when the frame
// could not be read. Only *IOError (or ctx's error) is worth stopping for, the
// other errors are per-frame.
func (d *Dev) Acquire(ctx context.Context, dst *Frame) (Outcome, error) {
	raw, err := d.ReadRawFrame(ctx)
	if err != nil {
		var ioErr *IOError
		if errors.As(err, &ioErr) {
			d.mu.Lock()
			d.stats.TransferFails++
			d.stats.LastFail = err
			d.mu.Unlock()
		}
		return NoFrame, err
	}
	o, err := Classify(raw, &d.cal, dst)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.LastFail = nil
	switch {
	case o == Calibrated:
		d.stats.CalibrationFrames++
		if d.cal.Count() == 1 {
			d.opts.Logger.Printf("seek: first calibration, %d dead pixels", len(d.cal.dead))
		}
	case o == Unrecognized:
		d.stats.UnrecognizedFrames++
	case err != nil:
		d.stats.SkippedFrames++
	default:
		if d.opts.FixDeadPixels {
			FixDeadPixels(dst, d.cal.dead)
		}
		dst.Metadata = Metadata{Captured: time.Now().UTC(), FrameCount: d.seq, Calibrations: d.cal.Count()}
		d.stats.GoodFrames++
	}
	return o, err
}

// NextFrame reads frames until a temperature frame is decoded into dst.
//
// Calibration, unrecognized and uncalibrated frames are silently consumed.
// Transfer failures are retried as specified by Opts.Policy; the last one is
// returned wrapped once the limit is reached.
func (d *Dev) NextFrame(ctx context.Context, dst *Frame) error {
	failures := 0
	delay := d.opts.Policy.Backoff
	for {
		o, err := d.Acquire(ctx, dst)
		if err == nil {
			if o == Temperature {
				return nil
			}
			failures = 0
			delay = d.opts.Policy.Backoff
			continue
		}
		var ioErr *IOError
		if !errors.As(err, &ioErr) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Per-frame error; the frame is dropped.
			failures = 0
			delay = d.opts.Policy.Backoff
			continue
		}
		if failures++; failures >= d.opts.Policy.MaxFailures {
			return fmt.Errorf("seek: giving up after %d consecutive failures: %w", failures, err)
		}
		d.opts.Logger.Printf("seek: %s; retrying in %s", err, delay)
		d.mu.Lock()
		d.stats.Retries++
		d.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > d.opts.Policy.MaxBackoff {
			delay = d.opts.Policy.MaxBackoff
		}
	}
}

// Stream sends temperature frames to c until ctx is done or NextFrame fails.
//
// It never blocks on c: when c is full, the oldest frame is dropped and its
// buffer reused. c must be buffered. c is not closed.
func (d *Dev) Stream(ctx context.Context, c chan *Frame) error {
	if cap(c) == 0 {
		return errUnbuffered
	}
	var spare *Frame
	for {
		f := spare
		if f == nil {
			f = NewFrame()
		}
		spare = nil
		if err := d.NextFrame(ctx, f); err != nil {
			return err
		}
		for sent := false; !sent; {
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case c <- f:
				sent = true
			default:
				select {
				case old := <-c:
					d.opts.Logger.Printf("seek: dropped frame %d", old.Metadata.FrameCount)
					spare = old
				default:
				}
			}
		}
	}
}

//

var errUnbuffered = errors.New("seek: Stream requires a buffered channel")

type stdLogger struct{}

func (stdLogger) Printf(format string, v ...interface{}) {
	log.Printf(format, v...)
}
