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

// Package sampler provides deterministic trajectory and ground-truth
// signal sources for the frame emitter. The signal model is deliberately
// simple: seeded gaussian k-space weighted by a radial decay. Anything
// resembling physics belongs upstream, not here.
package sampler

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/neurosim-lab/go-mrd/pkg/mrd"
)

// decayRate controls how fast the synthetic signal falls off towards the
// edge of k-space
const decayRate = 4.0

// Cartesian samples a full grid, one line along the last (readout) axis
// per shot, phase encoding over the remaining axes in row-major order.
type Cartesian struct {
	cfg *mrd.HeaderConfig
	rng *rand.Rand
	// per-axis normalized offsets from the k-space center
	offsets [][]float64
}

var _ mrd.FrameSource = &Cartesian{}

// NewCartesian derives the grid ordering from the header shape. The header
// must declare shots_per_frame and samples_per_shot consistent with the
// shape: one shot per phase line, one sample per readout point.
func NewCartesian(cfg *mrd.HeaderConfig) (*Cartesian, error) {
	lines := 1
	for _, s := range cfg.Shape[:len(cfg.Shape)-1] {
		lines *= s
	}
	if cfg.ShotsPerFrame != lines || cfg.SamplesPerShot != cfg.Shape[len(cfg.Shape)-1] {
		return nil, mrd.ErrMalformedHeader{Field: "encodingLimits"}
	}
	return &Cartesian{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.RngSeed)),
		offsets: centerOffsets(cfg.Shape),
	}, nil
}

// centerOffsets precomputes, per axis, the normalized distance of every
// grid index from the k-space center
func centerOffsets(shape []int) [][]float64 {
	offsets := make([][]float64, len(shape))
	for d, n := range shape {
		offsets[d] = make([]float64, n)
		if n > 1 {
			floats.Span(offsets[d], -0.5, 0.5)
		}
	}
	return offsets
}

// SampleFrame produces the full-grid trajectory and a fresh signal draw
// for one repetition
func (s *Cartesian) SampleFrame(rep int) ([]float32, [][]complex64, error) {
	cfg := s.cfg
	dim := cfg.Dim()
	shots := cfg.ShotsPerFrame
	samples := cfg.SamplesPerShot

	traj := make([]float32, shots*samples*dim)
	idx := make([]int, dim-1)
	pos := 0
	for j := 0; j < shots; j++ {
		for smp := 0; smp < samples; smp++ {
			for d := 0; d < dim-1; d++ {
				traj[pos] = float32(idx[d])
				pos++
			}
			traj[pos] = float32(smp)
			pos++
		}
		// advance the phase-encoding multi-index
		for d := dim - 2; d >= 0; d-- {
			idx[d]++
			if idx[d] < cfg.Shape[d] {
				break
			}
			idx[d] = 0
		}
	}

	data := s.signal(traj, shots*samples)
	return traj, data, nil
}

// signal draws per-coil complex gaussians weighted by distance from the
// k-space center. traj carries grid indices for cartesian geometry and
// normalized coordinates otherwise; both map onto the same decay.
func (s *Cartesian) signal(traj []float32, total int) [][]complex64 {
	cfg := s.cfg
	dim := cfg.Dim()
	data := make([][]complex64, cfg.NumCoils)
	for c := range data {
		data[c] = make([]complex64, total)
	}
	for i := 0; i < total; i++ {
		r2 := 0.0
		for d := 0; d < dim; d++ {
			v := s.offsets[d][int(traj[i*dim+d])]
			r2 += v * v
		}
		w := math.Exp(-decayRate * r2)
		for c := range data {
			data[c][i] = complex(float32(w*s.rng.NormFloat64()), float32(w*s.rng.NormFloat64()))
		}
	}
	return data
}

// Radial samples golden-angle 2D spokes through the k-space center,
// continuous coordinates in [-0.5, 0.5].
type Radial struct {
	cfg *mrd.HeaderConfig
	rng *rand.Rand
	// kr is the radial coordinate of every sample along a spoke
	kr []float64
	// spokes emitted so far, advances the golden angle across repetitions
	spokes int
}

var _ mrd.FrameSource = &Radial{}

// goldenAngle in radians
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

func NewRadial(cfg *mrd.HeaderConfig) (*Radial, error) {
	if cfg.Dim() != 2 {
		return nil, mrd.ErrMalformedHeader{Field: "matrixSize"}
	}
	if cfg.ShotsPerFrame <= 0 || cfg.SamplesPerShot <= 0 {
		return nil, mrd.ErrMalformedHeader{Field: "encodingLimits"}
	}
	kr := make([]float64, cfg.SamplesPerShot)
	if cfg.SamplesPerShot > 1 {
		floats.Span(kr, -0.5, 0.5)
	}
	return &Radial{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.RngSeed)),
		kr:  kr,
	}, nil
}

// SampleFrame produces one frame of spokes, continuing the golden-angle
// sequence where the previous repetition left off
func (s *Radial) SampleFrame(rep int) ([]float32, [][]complex64, error) {
	cfg := s.cfg
	shots := cfg.ShotsPerFrame
	samples := cfg.SamplesPerShot

	traj := make([]float32, shots*samples*2)
	pos := 0
	for j := 0; j < shots; j++ {
		theta := goldenAngle * float64(s.spokes)
		s.spokes++
		sin, cos := math.Sincos(theta)
		for smp := 0; smp < samples; smp++ {
			traj[pos] = float32(s.kr[smp] * cos)
			traj[pos+1] = float32(s.kr[smp] * sin)
			pos += 2
		}
	}

	total := shots * samples
	data := make([][]complex64, cfg.NumCoils)
	for c := range data {
		data[c] = make([]complex64, total)
	}
	for i := 0; i < total; i++ {
		x := float64(traj[i*2])
		y := float64(traj[i*2+1])
		w := math.Exp(-decayRate * (x*x + y*y))
		for c := range data {
			data[c][i] = complex(float32(w*s.rng.NormFloat64()), float32(w*s.rng.NormFloat64()))
		}
	}
	return traj, data, nil
}
