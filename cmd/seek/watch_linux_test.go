// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchFiles(t *testing.T) {
	d := t.TempDir()
	p := filepath.Join(d, "seek.yaml")
	require.NoError(t, os.WriteFile(p, []byte("port: 1\n"), 0600))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(p, old, old))

	type result struct {
		name string
		err  error
	}
	c := make(chan result, 1)
	go func() {
		name, err := watchFiles(p, filepath.Join(d, "missing"))
		c <- result{name, err}
	}()
	// Unrelated files in the directory are ignored.
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	timeout := time.After(5 * time.Second)
	for i := 0; ; i++ {
		select {
		case r := <-c:
			require.NoError(t, r.err)
			assert.Equal(t, p, r.name)
			return
		case <-tick.C:
			require.NoError(t, os.WriteFile(filepath.Join(d, "other"), []byte{byte(i)}, 0600))
			if i >= 5 {
				require.NoError(t, os.WriteFile(p, []byte("port: 2\n"), 0600))
			}
		case <-timeout:
			t.Fatal("timed out")
		}
	}
}

func TestWatchFiles_relative(t *testing.T) {
	d := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(d))
	defer os.Chdir(wd)
	require.NoError(t, os.WriteFile("seek.yaml", []byte("port: 1\n"), 0600))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes("seek.yaml", old, old))

	c := make(chan string, 1)
	go func() {
		name, _ := watchFiles("seek.yaml")
		c <- name
	}()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case name := <-c:
			abs, err := filepath.Abs("seek.yaml")
			require.NoError(t, err)
			assert.Equal(t, abs, name)
			return
		case <-tick.C:
			require.NoError(t, os.WriteFile("seek.yaml", []byte("port: 2\n"), 0600))
		case <-timeout:
			t.Fatal("timed out")
		}
	}
}
