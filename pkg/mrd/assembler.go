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
	"io"

	"github.com/neurosim-lab/go-mrd/pkg/layers"
	"github.com/neurosim-lab/go-mrd/pkg/log"
)

type assemblerState int

const (
	awaitingFirstShot assemblerState = iota
	accumulating
)

// geometry is the part of frame assembly that differs between cartesian
// and non-cartesian acquisitions: buffer shape and where a record's coil
// samples land. The flag-driven state machine around it is shared.
type geometry interface {
	// place writes one record into the frame buffer at the position its
	// trajectory dictates
	place(acq *layers.AcquisitionLayer, shot int) error
	// frame builds the Frame view over the accumulated buffers
	frame(rep int) *Frame
	// reset zeroes the buffers for the next repetition
	reset()
}

// FrameAssembler consumes an ordered record stream and yields one complete
// k-space frame per repetition. It makes exactly one pass over the
// underlying stream and owns a single reuse buffer: a yielded frame is
// valid until the next call to Next.
type FrameAssembler struct {
	cfg     *HeaderConfig
	scanner *RecordScanner
	geo     geometry

	state        assemblerState
	shot         int
	rep          int
	lastCounter  uint64
	pendingReset bool
	done         bool
	err          error
}

// NewAssembler opens an assembler matching the trajectory kind the header
// declares
func NewAssembler(c *Container) (*FrameAssembler, error) {
	if c.Config.Trajectory == TrajectoryCartesian {
		return NewCartesianAssembler(c)
	}
	return NewNonCartesianAssembler(c)
}

// NewCartesianAssembler assembles dense grid frames with a boolean
// sampling mask
func NewCartesianAssembler(c *Container) (*FrameAssembler, error) {
	cfg := c.Config
	if len(cfg.Shape) < 2 {
		return nil, ErrMalformedHeader{Field: "matrixSize"}
	}
	geo := &cartesianGeometry{
		cfg:  cfg,
		data: make([]complex64, cfg.NumCoils*cfg.VolumeSize()),
		mask: make([]bool, cfg.VolumeSize()),
	}
	return &FrameAssembler{cfg: cfg, scanner: c.Acquisitions(), geo: geo}, nil
}

// NewNonCartesianAssembler assembles (coils, shots, samples) frames with
// the continuous trajectory alongside
func NewNonCartesianAssembler(c *Container) (*FrameAssembler, error) {
	cfg := c.Config
	if cfg.ShotsPerFrame <= 0 || cfg.SamplesPerShot <= 0 {
		return nil, ErrMalformedHeader{Field: "encodingLimits"}
	}
	geo := &nonCartesianGeometry{
		cfg:  cfg,
		data: make([]complex64, cfg.NumCoils*cfg.ShotsPerFrame*cfg.SamplesPerShot),
		traj: make([]float32, cfg.ShotsPerFrame*cfg.SamplesPerShot*cfg.Dim()),
	}
	return &FrameAssembler{cfg: cfg, scanner: c.Acquisitions(), geo: geo}, nil
}

// Next returns the next complete frame. io.EOF after the final frame. Any
// other error is fatal for the stream and sticky.
func (a *FrameAssembler) Next() (*Frame, error) {
	if a.err != nil {
		return nil, a.err
	}
	if a.done {
		return nil, io.EOF
	}
	if a.pendingReset {
		// the previously yielded frame becomes invalid here
		a.geo.reset()
		a.pendingReset = false
	}

	for {
		acq, err := a.scanner.Next()
		if err == io.EOF {
			if a.state == accumulating {
				a.err = ErrTruncatedStream{ScanCounter: a.lastCounter, ShotsSeen: a.shot}
				return nil, a.err
			}
			a.done = true
			return nil, io.EOF
		}
		if err != nil {
			a.err = err
			return nil, a.err
		}

		if a.state == awaitingFirstShot {
			if !acq.Flags.Has(layers.FlagFirstInRepetition) {
				a.err = ErrFlagSequence{
					ScanCounter: acq.ScanCounter,
					What:        fmt.Sprintf("expected FIRST_IN_REPETITION, flags %064b", acq.Flags),
				}
				return nil, a.err
			}
			a.state = accumulating
			a.shot = 0
		}

		if int(acq.Shot) != a.shot {
			a.err = ErrFlagSequence{
				ScanCounter: acq.ScanCounter,
				What:        fmt.Sprintf("shot index %d, expected %d", acq.Shot, a.shot),
			}
			return nil, a.err
		}

		if err := a.geo.place(acq, a.shot); err != nil {
			a.err = err
			return nil, a.err
		}
		a.lastCounter = acq.ScanCounter
		a.shot++

		if acq.Flags.Has(layers.FlagLastInRepetition) || acq.Flags.Has(layers.FlagLastInMeasurement) {
			log.Debug("Frame %d complete after scan counter %d (%d shots)", a.rep, acq.ScanCounter, a.shot)
			frame := a.geo.frame(a.rep)
			a.rep++
			a.state = awaitingFirstShot
			a.pendingReset = true
			return frame, nil
		}
	}
}

// FramesYielded returns how many frames have been produced so far
func (a *FrameAssembler) FramesYielded() int {
	return a.rep
}

type cartesianGeometry struct {
	cfg  *HeaderConfig
	data []complex64
	mask []bool
}

func (g *cartesianGeometry) place(acq *layers.AcquisitionLayer, shot int) error {
	cfg := g.cfg
	if int(acq.NumCoils) != cfg.NumCoils {
		return ErrRecordGeometry{ScanCounter: acq.ScanCounter,
			What: fmt.Sprintf("record has %d coils, header declares %d", acq.NumCoils, cfg.NumCoils)}
	}
	if int(acq.TrajDim) != cfg.Dim() {
		return ErrRecordGeometry{ScanCounter: acq.ScanCounter,
			What: fmt.Sprintf("trajectory dimensionality %d, volume has %d", acq.TrajDim, cfg.Dim())}
	}

	volume := cfg.VolumeSize()
	idx := make([]int, cfg.Dim())
	for s := 0; s < int(acq.NumSamples); s++ {
		loc := acq.TrajAt(s)
		for d, v := range loc {
			i := int(v)
			if i < 0 || i >= cfg.Shape[d] {
				return ErrRecordGeometry{ScanCounter: acq.ScanCounter,
					What: fmt.Sprintf("grid index %d out of range for axis %d of %v", i, d, cfg.Shape)}
			}
			idx[d] = i
		}
		flat := voxelIndex(cfg.Shape, idx)
		for c := 0; c < cfg.NumCoils; c++ {
			g.data[c*volume+flat] = acq.Data[c][s]
		}
		g.mask[flat] = true
	}
	return nil
}

func (g *cartesianGeometry) frame(rep int) *Frame {
	return &Frame{
		Repetition: rep,
		NumCoils:   g.cfg.NumCoils,
		Kind:       TrajectoryCartesian,
		Shape:      g.cfg.Shape,
		Data:       g.data,
		Mask:       g.mask,
	}
}

func (g *cartesianGeometry) reset() {
	for i := range g.data {
		g.data[i] = 0
	}
	for i := range g.mask {
		g.mask[i] = false
	}
}

type nonCartesianGeometry struct {
	cfg  *HeaderConfig
	data []complex64
	traj []float32
}

func (g *nonCartesianGeometry) place(acq *layers.AcquisitionLayer, shot int) error {
	cfg := g.cfg
	if int(acq.NumCoils) != cfg.NumCoils {
		return ErrRecordGeometry{ScanCounter: acq.ScanCounter,
			What: fmt.Sprintf("record has %d coils, header declares %d", acq.NumCoils, cfg.NumCoils)}
	}
	if int(acq.NumSamples) != cfg.SamplesPerShot {
		return ErrRecordGeometry{ScanCounter: acq.ScanCounter,
			What: fmt.Sprintf("record has %d samples, header declares %d", acq.NumSamples, cfg.SamplesPerShot)}
	}
	if shot >= cfg.ShotsPerFrame {
		return ErrFlagSequence{ScanCounter: acq.ScanCounter,
			What: fmt.Sprintf("shot %d beyond the %d shots of a frame", shot, cfg.ShotsPerFrame)}
	}

	samples := cfg.SamplesPerShot
	for c := 0; c < cfg.NumCoils; c++ {
		copy(g.data[(c*cfg.ShotsPerFrame+shot)*samples:], acq.Data[c])
	}
	copy(g.traj[shot*samples*cfg.Dim():], acq.Traj)
	return nil
}

func (g *nonCartesianGeometry) frame(rep int) *Frame {
	return &Frame{
		Repetition: rep,
		NumCoils:   g.cfg.NumCoils,
		Kind:       TrajectoryOther,
		Shots:      g.cfg.ShotsPerFrame,
		Samples:    g.cfg.SamplesPerShot,
		Dim:        g.cfg.Dim(),
		Data:       g.data,
		Traj:       g.traj,
	}
}

func (g *nonCartesianGeometry) reset() {
	for i := range g.data {
		g.data[i] = 0
	}
	for i := range g.traj {
		g.traj[i] = 0
	}
}
