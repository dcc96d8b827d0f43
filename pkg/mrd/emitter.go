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

package mrd

import (
	"fmt"

	"github.com/neurosim-lab/go-mrd/pkg/layers"
	"github.com/neurosim-lab/go-mrd/pkg/log"
)

// FrameSource supplies, per repetition, the trajectory and the per-coil
// ground-truth samples the emitter frames. The core never computes
// physics, it only frames what it is given.
//
// traj is (shots, samples, dim) flattened row-major. data holds one slice
// per coil of length shots*samples.
type FrameSource interface {
	SampleFrame(rep int) (traj []float32, data [][]complex64, err error)
}

// FrameEmitter turns per-repetition frames into a correctly flagged,
// correctly indexed record stream, the exact inverse of the assembler.
type FrameEmitter struct {
	container *Container
	cfg       *HeaderConfig
	counter   uint64
}

func NewFrameEmitter(c *Container) *FrameEmitter {
	return &FrameEmitter{
		container: c,
		cfg:       c.Config,
	}
}

// EmitAll writes every complete repetition that fits into the configured
// simulation time. A trailing partial repetition is discarded with a
// warning, never emitted. Scan counters increase strictly from 0 across
// the stream.
func (e *FrameEmitter) EmitAll(src FrameSource) error {
	cfg := e.cfg
	reps, exact := cfg.PlanRepetitions()
	if !exact {
		log.Warning("Volume TR %g ms does not align with max simulation time %g ms, "+
			"the trailing incomplete repetition is discarded", cfg.TRms*float64(cfg.ShotsPerFrame), cfg.MaxSimTimeMs)
	}
	log.Info("Emitting %d repetitions: %d shots of %d samples, %d coils",
		reps, cfg.ShotsPerFrame, cfg.SamplesPerShot, cfg.NumCoils)

	for rep := 0; rep < reps; rep++ {
		traj, data, err := src.SampleFrame(rep)
		if err != nil {
			return err
		}
		records, err := e.frameRecords(rep, reps, traj, data)
		if err != nil {
			return err
		}
		if err := e.container.AppendAcquisitions(records); err != nil {
			return ErrContainerWrite{Path: e.container.Path, Err: err}
		}
	}
	return nil
}

// frameRecords slices one repetition into shots_per_frame flagged records
func (e *FrameEmitter) frameRecords(rep, reps int, traj []float32, data [][]complex64) ([]*layers.AcquisitionLayer, error) {
	cfg := e.cfg
	shots := cfg.ShotsPerFrame
	samples := cfg.SamplesPerShot
	dim := cfg.Dim()

	if len(traj) != shots*samples*dim {
		return nil, ErrRecordGeometry{ScanCounter: e.counter,
			What: fmt.Sprintf("trajectory has %d values, want %d", len(traj), shots*samples*dim)}
	}
	if len(data) != cfg.NumCoils {
		return nil, ErrRecordGeometry{ScanCounter: e.counter,
			What: fmt.Sprintf("data has %d coils, header declares %d", len(data), cfg.NumCoils)}
	}
	for c := range data {
		if len(data[c]) != shots*samples {
			return nil, ErrRecordGeometry{ScanCounter: e.counter,
				What: fmt.Sprintf("coil %d has %d samples, want %d", c, len(data[c]), shots*samples)}
		}
	}

	records := make([]*layers.AcquisitionLayer, shots)
	for j := 0; j < shots; j++ {
		var flags layers.AcquisitionFlags
		if j == 0 {
			flags.Set(layers.FlagFirstInEncodeStep1)
			flags.Set(layers.FlagFirstInRepetition)
			if rep == 0 {
				flags.Set(layers.FlagFirstInMeasurement)
			}
		}
		if j == shots-1 {
			flags.Set(layers.FlagLastInEncodeStep1)
			flags.Set(layers.FlagLastInRepetition)
			if rep == reps-1 {
				flags.Set(layers.FlagLastInMeasurement)
			}
		}

		coilData := make([][]complex64, cfg.NumCoils)
		for c := range data {
			coilData[c] = data[c][j*samples : (j+1)*samples]
		}

		records[j] = &layers.AcquisitionLayer{
			AcquisitionHeader: layers.AcquisitionHeader{
				ScanCounter:       e.counter,
				Flags:             flags,
				Repetition:        uint32(rep),
				Shot:              uint32(j),
				NumCoils:          uint16(cfg.NumCoils),
				NumSamples:        uint16(samples),
				TrajDim:           uint16(dim),
				ReadoutDurationUs: cfg.ReadoutDurationUs(),
			},
			Traj: traj[j*samples*dim : (j+1)*samples*dim],
			Data: coilData,
		}
		e.counter++
	}
	return records, nil
}

// ScanCounter returns the next counter value to be assigned
func (e *FrameEmitter) ScanCounter() uint64 {
	return e.counter
}

// EmitTo creates the destination container, replacing any pre-existing one,
// emits the whole stream and closes the container on every exit path.
func EmitTo(path string, cfg *HeaderConfig, src FrameSource) error {
	c, err := Create(path, cfg)
	if err != nil {
		return err
	}
	CloseOnExit(c)
	defer c.Close()

	return NewFrameEmitter(c).EmitAll(src)
}
