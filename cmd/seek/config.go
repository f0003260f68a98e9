// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the content of ~/.config/seek/seek.yaml.
type Config struct {
	Port          int        `yaml:"port"`
	FixDeadPixels bool       `yaml:"fix_dead_pixels"`
	ReadTimeout   Duration   `yaml:"read_timeout"`
	MaxFailures   int        `yaml:"max_failures"`
	MQTT          MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig enables publishing when Broker is set.
type MQTTConfig struct {
	Broker   string  `yaml:"broker"` // e.g. tcp://localhost:1883
	ClientID string  `yaml:"client_id"`
	Username string  `yaml:"username"`
	Password string  `yaml:"password"`
	Topic    string  `yaml:"topic"`
	Rate     float64 `yaml:"rate"`   // Maximum frames published per second.
	Frames   bool    `yaml:"frames"` // Publish the float16 encoded frames in addition to the summaries.
}

func (m *MQTTConfig) isValid() bool {
	return m.Broker != "" && m.Topic != "" && m.Rate > 0
}

// Duration is a time.Duration serialized as a string like "1.5s".
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

// setDefaults fills the unset values.
func (c *Config) setDefaults() {
	if c.Port == 0 {
		c.Port = 8010
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = Duration(time.Second)
	}
	if c.MaxFailures == 0 {
		c.MaxFailures = 5
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "go-seek"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "seek"
	}
	if c.MQTT.Rate == 0 {
		c.MQTT.Rate = 1
	}
}

func defaultConfigPath() string {
	usr, err := user.Current()
	if err != nil {
		return filepath.Join(".config", "seek", "seek.yaml")
	}
	return filepath.Join(usr.HomeDir, ".config", "seek", "seek.yaml")
}

// loadConfig loads the config file or creates one if none exists.
//
// The file is normalized: missing values are set to their default and written
// back.
func loadConfig(path string, log logrus.FieldLogger) (*Config, error) {
	c := &Config{}
	srcData, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(srcData, c); err != nil {
			return nil, fmt.Errorf("%s is invalid: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	c.setDefaults()

	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(srcData, data) {
		log.Debugf("normalizing %s", path)
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			log.WithError(err).Warn("failed to create config directory")
		} else if err := os.WriteFile(path, data, 0600); err != nil {
			log.WithError(err).Warnf("failed to write %s", path)
		}
	}
	return c, nil
}
