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
	"io"
	"testing"

	"github.com/neurosim-lab/go-mrd/pkg/layers"
)

// shotRecord builds one non-cartesian record for the worked example
// geometry without going through the emitter
func shotRecord(cfg *HeaderConfig, counter uint64, rep, shot int, flags layers.AcquisitionFlags) *layers.AcquisitionLayer {
	acq := &layers.AcquisitionLayer{
		AcquisitionHeader: layers.AcquisitionHeader{
			ScanCounter: counter,
			Flags:       flags,
			Repetition:  uint32(rep),
			Shot:        uint32(shot),
			NumCoils:    uint16(cfg.NumCoils),
			NumSamples:  uint16(cfg.SamplesPerShot),
			TrajDim:     uint16(cfg.Dim()),
		},
		Traj: make([]float32, cfg.SamplesPerShot*cfg.Dim()),
	}
	acq.Data = make([][]complex64, cfg.NumCoils)
	for c := range acq.Data {
		acq.Data[c] = make([]complex64, cfg.SamplesPerShot)
		for i := range acq.Data[c] {
			acq.Data[c][i] = complex(float32(counter), float32(i))
		}
	}
	return acq
}

func firstShotFlags() layers.AcquisitionFlags {
	var f layers.AcquisitionFlags
	f.Set(layers.FlagFirstInEncodeStep1)
	f.Set(layers.FlagFirstInRepetition)
	return f
}

func lastShotFlags() layers.AcquisitionFlags {
	var f layers.AcquisitionFlags
	f.Set(layers.FlagLastInEncodeStep1)
	f.Set(layers.FlagLastInRepetition)
	return f
}

// TestRoundTripNonCartesian emits three repetitions and checks the
// assembled frames reproduce the source data sample for sample
func TestRoundTripNonCartesian(t *testing.T) {
	cfg := workedExampleConfig()
	cfg.MaxSimTimeMs = 3000
	container, src := emitTestStream(t, cfg)

	assembler, err := NewAssembler(container)
	if err != nil {
		t.Fatalf("NewAssembler failed: %v", err)
	}

	reference := &scriptedSource{cfg: cfg}
	for rep := 0; rep < src.calls; rep++ {
		frame, err := assembler.Next()
		if err != nil {
			t.Fatalf("Next for repetition %d failed: %v", rep, err)
		}
		if frame.Repetition != rep {
			t.Errorf("Frame %d labeled repetition %d", rep, frame.Repetition)
		}
		if frame.Kind != TrajectoryOther {
			t.Errorf("Frame %d kind %s", rep, frame.Kind)
		}
		if frame.NumCoils != cfg.NumCoils || frame.Shots != cfg.ShotsPerFrame || frame.Samples != cfg.SamplesPerShot {
			t.Fatalf("Frame %d geometry (%d, %d, %d)", rep, frame.NumCoils, frame.Shots, frame.Samples)
		}

		traj, data, _ := reference.SampleFrame(rep)
		for c := 0; c < cfg.NumCoils; c++ {
			for shot := 0; shot < cfg.ShotsPerFrame; shot++ {
				for s := 0; s < cfg.SamplesPerShot; s++ {
					want := data[c][shot*cfg.SamplesPerShot+s]
					if got := frame.Sample(c, shot, s); got != want {
						t.Fatalf("Frame %d coil %d shot %d sample %d: %v, want %v", rep, c, shot, s, got, want)
					}
				}
			}
		}
		for shot := 0; shot < cfg.ShotsPerFrame; shot++ {
			for s := 0; s < cfg.SamplesPerShot; s++ {
				loc := frame.TrajAt(shot, s)
				base := (shot*cfg.SamplesPerShot + s) * cfg.Dim()
				for d := 0; d < cfg.Dim(); d++ {
					if loc[d] != traj[base+d] {
						t.Fatalf("Frame %d shot %d sample %d axis %d: trajectory %g, want %g",
							rep, shot, s, d, loc[d], traj[base+d])
					}
				}
			}
		}
	}

	if _, err := assembler.Next(); err != io.EOF {
		t.Errorf("Expected io.EOF after the final frame, got %v", err)
	}
	if assembler.FramesYielded() != src.calls {
		t.Errorf("FramesYielded = %d, want %d", assembler.FramesYielded(), src.calls)
	}
}

// TestCartesianPlacement follows one record carrying grid location
// (5, 5, 5) of a (10, 10, 10) volume into the mask and every coil
func TestCartesianPlacement(t *testing.T) {
	cfg := validConfig()
	cfg.Trajectory = TrajectoryCartesian
	cfg.Shape = []int{10, 10, 10}
	cfg.FovMm = []float64{192, 192, 128}
	cfg.NumCoils = 2
	cfg.ShotsPerFrame = 1
	cfg.SamplesPerShot = 1

	container := newTestContainer(t, cfg)
	var flags layers.AcquisitionFlags
	flags.Set(layers.FlagFirstInRepetition)
	flags.Set(layers.FlagLastInRepetition)
	acq := &layers.AcquisitionLayer{
		AcquisitionHeader: layers.AcquisitionHeader{
			Flags:      flags,
			NumCoils:   2,
			NumSamples: 1,
			TrajDim:    3,
		},
		Traj: []float32{5, 5, 5},
		Data: [][]complex64{{3 + 4i}, {-1 - 2i}},
	}
	if err := container.AppendAcquisition(acq); err != nil {
		t.Fatalf("AppendAcquisition failed: %v", err)
	}

	assembler, err := NewAssembler(container)
	if err != nil {
		t.Fatalf("NewAssembler failed: %v", err)
	}
	frame, err := assembler.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	if frame.Kind != TrajectoryCartesian {
		t.Fatalf("Frame kind %s", frame.Kind)
	}
	if !frame.MaskAt(5, 5, 5) {
		t.Error("Mask not set at (5, 5, 5)")
	}
	sampled := 0
	for _, m := range frame.Mask {
		if m {
			sampled++
		}
	}
	if sampled != 1 {
		t.Errorf("Mask has %d sampled voxels, want 1", sampled)
	}
	if got := frame.At(0, 5, 5, 5); got != 3+4i {
		t.Errorf("Coil 0 at (5, 5, 5): %v", got)
	}
	if got := frame.At(1, 5, 5, 5); got != -1-2i {
		t.Errorf("Coil 1 at (5, 5, 5): %v", got)
	}
	if got := frame.At(0, 0, 0, 0); got != 0 {
		t.Errorf("Unsampled voxel holds %v", got)
	}
}

func TestCartesianRejectsOutOfGridLocation(t *testing.T) {
	cfg := validConfig()
	cfg.Trajectory = TrajectoryCartesian
	cfg.Shape = []int{4, 4}
	cfg.FovMm = []float64{192, 192}
	cfg.NumCoils = 1

	container := newTestContainer(t, cfg)
	var flags layers.AcquisitionFlags
	flags.Set(layers.FlagFirstInRepetition)
	acq := &layers.AcquisitionLayer{
		AcquisitionHeader: layers.AcquisitionHeader{
			ScanCounter: 7,
			Flags:       flags,
			NumCoils:    1,
			NumSamples:  1,
			TrajDim:     2,
		},
		Traj: []float32{4, 0},
		Data: [][]complex64{{1}},
	}
	if err := container.AppendAcquisition(acq); err != nil {
		t.Fatalf("AppendAcquisition failed: %v", err)
	}

	assembler, err := NewAssembler(container)
	if err != nil {
		t.Fatalf("NewAssembler failed: %v", err)
	}
	_, err = assembler.Next()
	geoErr, ok := err.(ErrRecordGeometry)
	if !ok {
		t.Fatalf("Expected ErrRecordGeometry, got %v", err)
	}
	if geoErr.ScanCounter != 7 {
		t.Errorf("Error names scan counter %d, want 7", geoErr.ScanCounter)
	}
}

// TestMissingFirstInRepetition corrupts the boundary flag of the second
// repetition and expects a sequencing error naming the offending record
func TestMissingFirstInRepetition(t *testing.T) {
	cfg := workedExampleConfig()
	cfg.ShotsPerFrame = 2
	cfg.SamplesPerShot = 4

	container := newTestContainer(t, cfg)
	records := []*layers.AcquisitionLayer{
		shotRecord(cfg, 0, 0, 0, firstShotFlags()),
		shotRecord(cfg, 1, 0, 1, lastShotFlags()),
		// second repetition starts without FIRST_IN_REPETITION
		shotRecord(cfg, 2, 1, 0, layers.AcquisitionFlags(0)),
		shotRecord(cfg, 3, 1, 1, lastShotFlags()),
	}
	if err := container.AppendAcquisitions(records); err != nil {
		t.Fatalf("AppendAcquisitions failed: %v", err)
	}

	assembler, err := NewNonCartesianAssembler(container)
	if err != nil {
		t.Fatalf("NewNonCartesianAssembler failed: %v", err)
	}
	if _, err := assembler.Next(); err != nil {
		t.Fatalf("First frame failed: %v", err)
	}

	_, err = assembler.Next()
	seqErr, ok := err.(ErrFlagSequence)
	if !ok {
		t.Fatalf("Expected ErrFlagSequence, got %v", err)
	}
	if seqErr.ScanCounter != 2 {
		t.Errorf("Error names scan counter %d, want 2", seqErr.ScanCounter)
	}

	// the error is sticky
	if _, err := assembler.Next(); err != seqErr {
		t.Errorf("Expected the sticky sequencing error, got %v", err)
	}
}

func TestNonContiguousShotIndex(t *testing.T) {
	cfg := workedExampleConfig()
	cfg.ShotsPerFrame = 3
	cfg.SamplesPerShot = 4

	container := newTestContainer(t, cfg)
	records := []*layers.AcquisitionLayer{
		shotRecord(cfg, 0, 0, 0, firstShotFlags()),
		shotRecord(cfg, 1, 0, 2, layers.AcquisitionFlags(0)),
	}
	if err := container.AppendAcquisitions(records); err != nil {
		t.Fatalf("AppendAcquisitions failed: %v", err)
	}

	assembler, err := NewNonCartesianAssembler(container)
	if err != nil {
		t.Fatalf("NewNonCartesianAssembler failed: %v", err)
	}
	_, err = assembler.Next()
	seqErr, ok := err.(ErrFlagSequence)
	if !ok {
		t.Fatalf("Expected ErrFlagSequence, got %v", err)
	}
	if seqErr.ScanCounter != 1 {
		t.Errorf("Error names scan counter %d, want 1", seqErr.ScanCounter)
	}
}

// TestTruncatedStream ends the stream mid-repetition and expects the
// truncation error, not a short frame
func TestTruncatedStream(t *testing.T) {
	cfg := workedExampleConfig()
	cfg.ShotsPerFrame = 4
	cfg.SamplesPerShot = 4

	container := newTestContainer(t, cfg)
	records := []*layers.AcquisitionLayer{
		shotRecord(cfg, 0, 0, 0, firstShotFlags()),
		shotRecord(cfg, 1, 0, 1, layers.AcquisitionFlags(0)),
	}
	if err := container.AppendAcquisitions(records); err != nil {
		t.Fatalf("AppendAcquisitions failed: %v", err)
	}

	assembler, err := NewNonCartesianAssembler(container)
	if err != nil {
		t.Fatalf("NewNonCartesianAssembler failed: %v", err)
	}
	_, err = assembler.Next()
	truncErr, ok := err.(ErrTruncatedStream)
	if !ok {
		t.Fatalf("Expected ErrTruncatedStream, got %v", err)
	}
	if truncErr.ScanCounter != 1 || truncErr.ShotsSeen != 2 {
		t.Errorf("Truncation reports counter %d after %d shots, want counter 1 after 2 shots",
			truncErr.ScanCounter, truncErr.ShotsSeen)
	}
}

// TestFrameBufferReuse verifies the documented ownership model: a yielded
// frame aliases the reuse buffer, a Clone survives the next pull
func TestFrameBufferReuse(t *testing.T) {
	cfg := workedExampleConfig()
	cfg.MaxSimTimeMs = 2000
	container, _ := emitTestStream(t, cfg)

	assembler, err := NewAssembler(container)
	if err != nil {
		t.Fatalf("NewAssembler failed: %v", err)
	}

	first, err := assembler.Next()
	if err != nil {
		t.Fatalf("First Next failed: %v", err)
	}
	firstSample := first.Sample(0, 0, 0)
	kept := first.Clone()

	second, err := assembler.Next()
	if err != nil {
		t.Fatalf("Second Next failed: %v", err)
	}
	if second.Sample(0, 0, 0) == firstSample {
		t.Fatal("Second frame repeats the first frame's data, scripted source should differ per repetition")
	}
	if first.Sample(0, 0, 0) != second.Sample(0, 0, 0) {
		t.Error("Yielded frames do not alias the reuse buffer")
	}
	if kept.Sample(0, 0, 0) != firstSample {
		t.Error("Clone did not survive the next pull")
	}
}
