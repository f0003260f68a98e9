// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package seektest

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/maruel/go-seek/seek/internal"
)

// Sensor simulates the frames sent by a camera looking at a room with a few
// warm objects.
//
// The first frame is a calibration frame, then one every CalibrationPeriod
// frames.
type Sensor struct {
	CalibrationPeriod int           // Default: 50.
	Delay             time.Duration // Sleep before each frame, to simulate the frame rate.

	mu      sync.Mutex
	rand    *rand.Rand
	pattern []int16 // Fixed pattern noise, as seen in calibration frames.
	vectors []vector
	count   int
}

// NewSensor returns a simulated sensor. The same seed yields the same frames.
func NewSensor(seed int64) *Sensor {
	s := &Sensor{rand: rand.New(rand.NewSource(seed))}
	s.pattern = make([]int16, internal.Width*internal.Height)
	for i := range s.pattern {
		s.pattern[i] = int16(6000 + s.rand.NormFloat64()*150)
	}
	s.vectors = make([]vector, 6)
	for i := range s.vectors {
		s.vectors[i].intensity = 40 + s.rand.Float64()*150
		s.vectors[i].x = s.rand.Float64() * internal.Width
		s.vectors[i].y = s.rand.Float64() * internal.Height
	}
	return s
}

// Next returns the next raw frame.
func (s *Sensor) Next() []byte {
	if s.Delay != 0 {
		time.Sleep(s.Delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	period := s.CalibrationPeriod
	if period <= 0 {
		period = 50
	}
	n := s.count
	s.count++
	if n%period == 0 {
		return Frame(1, func(row, col int) int16 { return s.pattern[row*internal.Width+col] })
	}
	s.update()
	return Frame(3, func(row, col int) int16 {
		return s.pattern[row*internal.Width+col] + int16(math.Round(s.scene(row, col)))
	})
}

//

// ambient is the room temperature in counts relative to the calibration
// background: (22°C - 42°C) / 0.0179.
const ambient = -1117

type vector struct {
	intensity float64
	x         float64
	y         float64
}

func (s *Sensor) update() {
	for i := range s.vectors {
		s.vectors[i].intensity += s.rand.NormFloat64() * 2
		s.vectors[i].x += s.rand.NormFloat64() * 0.5
		s.vectors[i].y += s.rand.NormFloat64() * 0.5
	}
}

// scene returns the value at row, col in counts above the background.
func (s *Sensor) scene(row, col int) float64 {
	fx := float64(col)
	fy := float64(row)
	v := float64(ambient) + s.rand.NormFloat64()*3
	for _, vect := range s.vectors {
		d := (vect.x-fx)*(vect.x-fx) + (vect.y-fy)*(vect.y-fy)
		v += vect.intensity * 10 / (1 + d/40)
	}
	if v > 4000 {
		v = 4000
	}
	return v
}
