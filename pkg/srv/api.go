/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

// Package srv serves a read-only inspection API over a scan container.
package srv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/neurosim-lab/go-mrd/pkg/config"
	"github.com/neurosim-lab/go-mrd/pkg/log"
	"github.com/neurosim-lab/go-mrd/pkg/mrd"
)

type ApiServer struct {
	context.Context
	*config.Config
	*mux.Router
	container *mrd.Container
}

func NewApiServer(ctx context.Context, cfg *config.Config, container *mrd.Container) (*ApiServer, error) {
	log.Info("Initializing API server with address: %s port: %d", cfg.Api.Host, cfg.Api.Port)
	s := &ApiServer{
		Context:   ctx,
		Config:    cfg,
		container: container,
	}
	return s, nil
}

// Run ...
func (s *ApiServer) Run() error {
	log.Debug("Starting API server: address: %s port: %d", s.Config.Api.Host, s.Config.Api.Port)
	s.configureRouter()
	httpServer := &http.Server{
		Handler: handlers.CombinedLoggingHandler(os.Stderr, s.Router),
		Addr:    fmt.Sprintf("%s:%d", s.Config.Api.Host, s.Config.Api.Port),
	}
	return httpServer.ListenAndServe()
}

func (s *ApiServer) configureRouter() {
	s.Router = mux.NewRouter()
	subRouter := s.Router.PathPrefix("/api").Subrouter()
	subRouter.HandleFunc("/header", s.handleHeader()).Methods("GET")
	subRouter.HandleFunc("/frames", s.handleFrames()).Methods("GET")
	subRouter.HandleFunc("/waveforms", s.handleWaveforms()).Methods("GET")
	subRouter.HandleFunc("/images/{name}", s.handleImage()).Methods("GET")
}

func writeJson(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Error while encoding response: %v", err)
	}
}

func (s *ApiServer) handleHeader() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJson(w, s.container.Config)
	}
}

// FrameSummary describes one assembled frame without shipping its samples
type FrameSummary struct {
	Repetition    int     `json:"repetition"`
	SampledVoxels int     `json:"sampled_voxels,omitempty"`
	Shots         int     `json:"shots,omitempty"`
	Energy        float64 `json:"energy"`
}

type FramesResponse struct {
	Count  int            `json:"count"`
	Frames []FrameSummary `json:"frames"`
}

func (s *ApiServer) handleFrames() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assembler, err := mrd.NewAssembler(s.container)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		resp := &FramesResponse{Frames: []FrameSummary{}}
		for {
			frame, err := assembler.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				// corrupt stream: flag sequence or truncation
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			resp.Frames = append(resp.Frames, summarize(frame))
		}
		resp.Count = len(resp.Frames)
		writeJson(w, resp)
	}
}

func summarize(frame *mrd.Frame) FrameSummary {
	summary := FrameSummary{Repetition: frame.Repetition}
	if frame.Kind == mrd.TrajectoryCartesian {
		for _, sampled := range frame.Mask {
			if sampled {
				summary.SampledVoxels++
			}
		}
	} else {
		summary.Shots = frame.Shots
	}
	var energy float64
	for _, v := range frame.Data {
		energy += float64(real(v))*float64(real(v)) + float64(imag(v))*float64(imag(v))
	}
	summary.Energy = math.Sqrt(energy)
	return summary
}

// WaveformSummary describes one sideband entry
type WaveformSummary struct {
	Index     int    `json:"index"`
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Timestamp uint64 `json:"timestamp"`
	Channels  int    `json:"channels"`
	Samples   int    `json:"samples"`
}

func (s *ApiServer) handleWaveforms() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := s.container.ReadAllDynamics()
		summaries := []WaveformSummary{}
		for i, entry := range entries {
			summary := WaveformSummary{
				Index:     i,
				ID:        entry.WaveformID,
				Name:      entry.Name,
				Timestamp: entry.Timestamp,
				Channels:  len(entry.Data),
			}
			if len(entry.Data) > 0 {
				summary.Samples = len(entry.Data[0])
			}
			summaries = append(summaries, summary)
		}
		writeJson(w, summaries)
	}
}

// ImageResponse carries the metadata of a named image, not its payload
type ImageResponse struct {
	Name   string `json:"name"`
	Shape  []int  `json:"shape"`
	Values int    `json:"values"`
}

func (s *ApiServer) handleImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		img, err := s.container.ReadImage(vars["name"])
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if img == nil {
			http.Error(w, fmt.Sprintf("Image %s not found", vars["name"]), http.StatusNotFound)
			return
		}
		writeJson(w, &ImageResponse{
			Name:   img.Name,
			Shape:  img.Meta.Shape,
			Values: len(img.Data),
		})
	}
}
