// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"image"
	"image/png"
	"net"
	"net/http"
	"sync"

	"github.com/maruel/go-seek/heatmap"
	"github.com/maruel/go-seek/seek"
	"github.com/maruel/interrupt"
	"github.com/maruel/serve-dir/loghttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"
)

// WebServer serves the most recent frames.
type WebServer struct {
	dev *seek.Dev
	log logrus.FieldLogger

	cond      *sync.Cond
	images    [9 * 10]*seek.Frame // ~10 seconds worth of frames.
	lastIndex int                 // Index of the most recent frame.
}

// StartWebServer starts listening on port.
func StartWebServer(port int, dev *seek.Dev, log logrus.FieldLogger) (*WebServer, error) {
	s := &WebServer{
		dev:       dev,
		log:       log,
		cond:      sync.NewCond(&sync.Mutex{}),
		lastIndex: -1,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.root)
	mux.HandleFunc("/favicon.ico", s.still)
	mux.HandleFunc("/still.png", s.still)
	mux.HandleFunc("/still8.png", s.still8)
	mux.HandleFunc("/frame.f16", s.frame)
	// The websocket is not wrapped: the logging handler doesn't support
	// hijacking.
	top := http.NewServeMux()
	top.Handle("/stream", websocket.Handler(s.stream))
	top.Handle("/", &loghttp.Handler{Handler: mux})
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	log.Infof("Listening on %d", port)
	go http.Serve(ln, top)
	go func() {
		<-interrupt.Channel
		s.cond.L.Lock()
		s.cond.Broadcast()
		s.cond.L.Unlock()
	}()
	return s, nil
}

// AddImg adds a frame. The frame must not be modified afterward.
func (s *WebServer) AddImg(f *seek.Frame) {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.lastIndex = (s.lastIndex + 1) % len(s.images)
	s.images[s.lastIndex] = f
	s.cond.Broadcast()
}

// last returns the most recent frame, if any.
func (s *WebServer) last() *seek.Frame {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	if s.lastIndex == -1 {
		return nil
	}
	return s.images[s.lastIndex]
}

var rootTmpl = template.Must(template.New("root").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>go-seek</title>
	<style>
		img.large {
			width: 618px; /* Multiple of 206 */
			height: auto;
			image-rendering: pixelated;
		}
	</style>
</head>
<body>
	<img class="large" id="live" src="/still.png"></img>
	<div id="meta"></div>
	<pre>{{with .Stats}}{{.GoodFrames}} frames {{.CalibrationFrames}} calibrations {{.SkippedFrames}} skipped {{.UnrecognizedFrames}} unrecognized {{.TransferFails}} fail {{.Retries}} retries{{end}}</pre>
	<script>
	var ws = new WebSocket((location.protocol == "https:" ? "wss://" : "ws://") + location.host + "/stream");
	ws.onmessage = function(e) {
		if (e.data[0] == "I") {
			document.getElementById("live").src = "data:image/png;base64," + e.data.substr(1);
		} else if (e.data[0] == "M") {
			var m = JSON.parse(e.data.substr(1));
			document.getElementById("meta").innerText =
				"#" + m.frame_count + " " + m.min.toFixed(1) + "°C - " + m.max.toFixed(1) + "°C";
		}
	};
	</script>
</body>
</html>`))

func (s *WebServer) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	data := struct{ Stats seek.Stats }{s.dev.Stats()}
	if err := rootTmpl.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *WebServer) still(w http.ResponseWriter, r *http.Request) {
	s.sendPNG(w, func(f *seek.Frame) image.Image { return heatmap.PseudoRGB(f) })
}

func (s *WebServer) still8(w http.ResponseWriter, r *http.Request) {
	s.sendPNG(w, func(f *seek.Frame) image.Image { return heatmap.AGCLinear(f) })
}

func (s *WebServer) sendPNG(w http.ResponseWriter, render func(f *seek.Frame) image.Image) {
	f := s.last()
	if f == nil {
		http.Error(w, "No frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	if err := png.Encode(w, render(f)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// frame sends the temperatures as float16.
func (s *WebServer) frame(w http.ResponseWriter, r *http.Request) {
	f := s.last()
	if f == nil {
		http.Error(w, "No frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Write(heatmap.EncodeFloat16(f))
}

// stream sends the frames as PseudoRGB PNGs over WebSocket.
//
// Each frame is followed by its Summary. Frames are skipped when the client is
// too slow.
func (s *WebServer) stream(w *websocket.Conn) {
	s.log.Debugf("websocket from %s", w.Request().RemoteAddr)
	defer w.Close()
	buf := &bytes.Buffer{}
	var lastSent *seek.Frame
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	for !interrupt.IsSet() {
		if s.lastIndex == -1 || s.images[s.lastIndex] == lastSent {
			s.cond.Wait()
			continue
		}
		f := s.images[s.lastIndex]
		lastSent = f
		s.cond.L.Unlock()
		// Do the actual I/O without the lock.
		err := sendFrame(w, buf, f)
		s.cond.L.Lock()
		// To break out of the loop, the lock must be held.
		if err != nil {
			s.log.WithError(err).Debug("websocket closed")
			break
		}
	}
}

func sendFrame(w *websocket.Conn, buf *bytes.Buffer, f *seek.Frame) error {
	// Frame I is for Image.
	buf.Reset()
	buf.WriteString("I")
	encoder := base64.NewEncoder(base64.StdEncoding, buf)
	if err := png.Encode(encoder, heatmap.PseudoRGB(f)); err != nil {
		return err
	}
	encoder.Close()
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	// Frame M is for Metadata.
	buf.Reset()
	buf.WriteString("M")
	if err := json.NewEncoder(buf).Encode(makeSummary(f)); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
