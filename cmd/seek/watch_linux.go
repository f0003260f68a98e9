// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/maruel/interrupt"
	fsnotify "gopkg.in/fsnotify.v1"
)

// watchFiles returns the absolute path of the first of paths to be modified,
// or an empty string once interrupted.
//
// The directories are watched, so editors replacing the file are detected.
// Missing files are ignored.
func watchFiles(paths ...string) (string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", err
	}
	defer watcher.Close()
	mods := map[string]time.Time{}
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		if p, err = filepath.Abs(p); err != nil {
			return "", err
		}
		mods[p] = fi.ModTime()
		if err = watcher.Add(filepath.Dir(p)); err != nil {
			return "", err
		}
	}
	for {
		select {
		case <-interrupt.Channel:
			return "", nil
		case err = <-watcher.Errors:
			return "", err
		case e := <-watcher.Events:
			name, err := filepath.Abs(e.Name)
			if err != nil {
				continue
			}
			mod0, ok := mods[name]
			if !ok {
				continue
			}
			if fi, err := os.Stat(name); err != nil || !fi.ModTime().Equal(mod0) {
				return name, nil
			}
		}
	}
}
