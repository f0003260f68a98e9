// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"errors"
	"image"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/ratelimit"
	"github.com/maruel/go-seek/heatmap"
	"github.com/maruel/go-seek/seek"
	"github.com/sirupsen/logrus"
)

// Summary is published to <topic>/summary for each frame.
type Summary struct {
	Captured   time.Time   `json:"captured"`
	FrameCount int         `json:"frame_count"`
	Min        float64     `json:"min"`
	Max        float64     `json:"max"`
	Mean       float64     `json:"mean"`
	MinAt      image.Point `json:"min_at"`
	MaxAt      image.Point `json:"max_at"`
}

func makeSummary(f *seek.Frame) Summary {
	return Summary{
		Captured:   f.Metadata.Captured,
		FrameCount: f.Metadata.FrameCount,
		Min:        f.Min,
		Max:        f.Max,
		Mean:       f.Mean(),
		MinAt:      heatmap.Min(f),
		MaxAt:      heatmap.Max(f),
	}
}

// PublisherStats are the publisher counters.
type PublisherStats struct {
	Published int
	Throttled int
	Failed    int
}

// Publisher sends frames to an MQTT broker, at most config.Rate per second.
type Publisher struct {
	config MQTTConfig
	client mqtt.Client
	bucket *ratelimit.Bucket
	log    logrus.FieldLogger

	mu    sync.Mutex
	stats PublisherStats
}

// NewPublisher connects to the broker.
func NewPublisher(config *MQTTConfig, log logrus.FieldLogger) (*Publisher, error) {
	opts := mqtt.NewClientOptions().AddBroker(config.Broker).SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("mqtt connection lost")
	})
	p := &Publisher{
		config: *config,
		client: mqtt.NewClient(opts),
		bucket: ratelimit.NewBucketWithRate(config.Rate, 1),
		log:    log,
	}
	if t := p.client.Connect(); t.Wait() && t.Error() != nil {
		return nil, t.Error()
	}
	log.Infof("Publishing to %s as %s", config.Broker, config.Topic)
	return p, nil
}

// Publish sends the frame unless the rate limit is reached, in which case it
// is dropped.
func (p *Publisher) Publish(f *seek.Frame) {
	if p.bucket.TakeAvailable(1) == 0 {
		p.mu.Lock()
		p.stats.Throttled++
		p.mu.Unlock()
		return
	}
	err := p.send(f)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.stats.Failed++
		p.log.WithError(err).Debug("publish failed")
		return
	}
	p.stats.Published++
}

// Stats returns a copy of the counters.
func (p *Publisher) Stats() PublisherStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

func (p *Publisher) send(f *seek.Frame) error {
	data, err := json.Marshal(makeSummary(f))
	if err != nil {
		return err
	}
	if err := wait(p.client.Publish(p.config.Topic+"/summary", 0, false, data)); err != nil {
		return err
	}
	if p.config.Frames {
		return wait(p.client.Publish(p.config.Topic+"/frame", 0, false, heatmap.EncodeFloat16(f)))
	}
	return nil
}

func wait(t mqtt.Token) error {
	if !t.WaitTimeout(time.Second) {
		return errPublishTimeout
	}
	return t.Error()
}

var errPublishTimeout = errors.New("mqtt publish timed out")
