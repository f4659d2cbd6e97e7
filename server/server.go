// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package server serves predictions of a trained network over HTTP.
//
// Routes:
//
//	GET  /healthz                     model name, loaded checkpoint and step
//	POST /predict                     image body -> {"label": p}, p = P(dog)
//	POST /reload                      restore the newest checkpoint
//	GET  /runs/{name}/scalars/{tag}   stored summaries of a run
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
	sync "github.com/sasha-s/go-deadlock"

	"github.com/born-ml/convnet/checkpoint"
	"github.com/born-ml/convnet/config"
	"github.com/born-ml/convnet/dataset"
	"github.com/born-ml/convnet/nn"
	"github.com/born-ml/convnet/summary"
	"github.com/born-ml/convnet/tensor"
)

// maxImageBytes bounds a /predict request body.
const maxImageBytes = 32 << 20

// Server holds one network and the graph its checkpoint was restored into.
type Server struct {
	Flags  config.Flags
	Logger *log.Logger

	net  nn.Network
	name string

	mu    sync.RWMutex
	graph *nn.Graph
	info  *checkpoint.Info
}

// New creates a server for the model called name. Call Reload before
// serving predictions.
func New(flags config.Flags, net nn.Network, name string) *Server {
	return &Server{
		Flags:  flags,
		Logger: log.New(os.Stderr, "", log.LstdFlags),
		net:    net,
		name:   name,
	}
}

// Reload restores the newest checkpoint of the model into a fresh graph
// and swaps it in.
func (s *Server) Reload() error {
	g := nn.NewGraph(nn.WithSeed(s.Flags.Seed), nn.WithWorkers(s.Flags.Workers))
	info, err := checkpoint.RestoreLatest(filepath.Join(s.Flags.CheckpointDir, s.name), g.Store(), nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.graph, s.info = g, info
	s.mu.Unlock()
	s.Logger.Printf("Serving %s from %s (step %d)", s.name, info.Path, info.Step)
	return nil
}

// Predict returns P(dog) for each image of a [N, H, W, C] batch.
func (s *Server) Predict(images *tensor.Tensor) ([]float32, error) {
	s.mu.RLock()
	g := s.graph
	s.mu.RUnlock()
	if g == nil {
		return nil, checkpoint.ErrNoCheckpoint
	}

	logits, err := g.Infer(s.net, images)
	if err != nil {
		return nil, err
	}
	return nn.Probabilities(logits), nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	router.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)
	router.HandleFunc("/runs/{name}/scalars/{tag}", s.handleScalars).Methods(http.MethodGet)
	return router
}

// Health is the /healthz response.
type Health struct {
	Model      string `json:"model"`
	Network    string `json:"network"`
	Loaded     bool   `json:"loaded"`
	Checkpoint string `json:"checkpoint,omitempty"`
	Step       int64  `json:"step"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	h := Health{Model: s.name, Network: s.net.String(), Loaded: s.info != nil}
	if s.info != nil {
		h.Checkpoint = s.info.Path
		h.Step = s.info.Step
	}
	s.mu.RUnlock()
	jsonResponse(w, http.StatusOK, h)
}

// Prediction is the /predict response.
type Prediction struct {
	Label float32 `json:"label"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImageBytes)
	pixels, err := dataset.DecodeImage(body, s.Flags.ImageSize, s.Flags.Channels)
	if err != nil {
		http.Error(w, fmt.Sprintf("image decode error: %v", err), http.StatusBadRequest)
		return
	}
	images, err := tensor.FromSlice(pixels, tensor.Shape{1, s.Flags.ImageSize, s.Flags.ImageSize, s.Flags.Channels})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	probs, err := s.Predict(images)
	switch {
	case errors.Is(err, checkpoint.ErrNoCheckpoint):
		http.Error(w, "no model loaded", http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, Prediction{Label: probs[0]})
}

func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	err := s.Reload()
	switch {
	case errors.Is(err, checkpoint.ErrNoCheckpoint):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		s.handleHealth(w, nil)
	}
}

func (s *Server) handleScalars(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := filepath.Base(filepath.Clean("/" + vars["name"]))
	points, err := summary.ReadScalars(filepath.Join(s.Flags.LogDir, name), vars["tag"])
	switch {
	case errors.Is(err, os.ErrNotExist):
		http.Error(w, fmt.Sprintf("no run %q", vars["name"]), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if points == nil {
		points = []summary.Point{}
	}
	jsonResponse(w, http.StatusOK, points)
}

func jsonResponse(w http.ResponseWriter, status int, x any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(x); err != nil {
		log.Printf("json encode: %v", err)
	}
}
