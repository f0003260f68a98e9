// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_create(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sub", "seek.yaml")
	c, err := loadConfig(p, quiet())
	require.NoError(t, err)
	assert.Equal(t, 8010, c.Port)
	assert.Equal(t, Duration(time.Second), c.ReadTimeout)
	assert.Equal(t, 5, c.MaxFailures)
	assert.Equal(t, "seek", c.MQTT.Topic)
	assert.False(t, c.MQTT.isValid())

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), "read_timeout: 1s\n")

	// Loading again is stable.
	c2, err := loadConfig(p, quiet())
	require.NoError(t, err)
	assert.Equal(t, c, c2)
	data2, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, data, data2)
}

func TestLoadConfig_normalize(t *testing.T) {
	p := filepath.Join(t.TempDir(), "seek.yaml")
	src := "port: 9000\nread_timeout: 250ms\nmqtt:\n  broker: tcp://localhost:1883\n  rate: 0.5\n"
	require.NoError(t, os.WriteFile(p, []byte(src), 0600))
	c, err := loadConfig(p, quiet())
	require.NoError(t, err)
	assert.Equal(t, 9000, c.Port)
	assert.Equal(t, Duration(250*time.Millisecond), c.ReadTimeout)
	assert.Equal(t, "go-seek", c.MQTT.ClientID)
	assert.Equal(t, 0.5, c.MQTT.Rate)
	assert.True(t, c.MQTT.isValid())

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.NotEqual(t, src, string(data))
	assert.Contains(t, string(data), "client_id: go-seek\n")
}

func TestLoadConfig_invalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "seek.yaml")
	require.NoError(t, os.WriteFile(p, []byte("read_timeout: soon\n"), 0600))
	_, err := loadConfig(p, quiet())
	assert.Error(t, err)
	// The invalid file is left alone.
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "read_timeout: soon\n", string(data))
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
