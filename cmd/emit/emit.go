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

package emit

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neurosim-lab/go-mrd/pkg/config"
	"github.com/neurosim-lab/go-mrd/pkg/layers"
	"github.com/neurosim-lab/go-mrd/pkg/log"
	"github.com/neurosim-lab/go-mrd/pkg/mrd"
	"github.com/neurosim-lab/go-mrd/pkg/sampler"
)

const (
	OutputOptionName     = "output"
	ShapeOptionName      = "shape"
	FovOptionName        = "fov"
	CoilsOptionName      = "coils"
	ShotsOptionName      = "shots"
	SamplesOptionName    = "samples"
	TrajectoryOptionName = "trajectory"
	TrOptionName         = "tr"
	TeOptionName         = "te"
	FaOptionName         = "fa"
	FieldOptionName      = "field"
	GmaxOptionName       = "gmax"
	SmaxOptionName       = "smax"
	DwellOptionName      = "dwell"
	DurationOptionName   = "duration"
	SeedOptionName       = "seed"
	SmapsOptionName      = "smaps"
	MotionOptionName     = "motion"

	// motion sideband: 3 translations + 3 rotations
	motionWaveformID = 1
	motionChannels   = 6
)

type emitOptions struct {
	output     string
	shape      string
	fov        string
	coils      int
	shots      int
	samples    int
	trajectory string
	tr         float64
	te         float64
	fa         float64
	field      float64
	gmax       float64
	smax       float64
	dwell      float64
	duration   float64
	seed       int64
	smaps      bool
	motion     bool
}

func NewCommand() *cobra.Command {
	opts := &emitOptions{}
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Generate a scan container from a synthetic acquisition",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output == "" {
				opts.output = cfg.Container
			}
			return run(opts)
		},
	}
	cmd.Flags().StringVar(&opts.output, OutputOptionName, "", "Destination container file")
	cmd.Flags().StringVar(&opts.shape, ShapeOptionName, "64,64", "Volume shape, e.g. 64,64 or 64,64,32")
	cmd.Flags().StringVar(&opts.fov, FovOptionName, "", "Field of view in mm, defaults to 3mm voxels")
	cmd.Flags().IntVar(&opts.coils, CoilsOptionName, 8, "Number of receiver coils")
	cmd.Flags().IntVar(&opts.shots, ShotsOptionName, 32, "Shots per frame (non-cartesian)")
	cmd.Flags().IntVar(&opts.samples, SamplesOptionName, 256, "Samples per shot (non-cartesian)")
	cmd.Flags().StringVar(&opts.trajectory, TrajectoryOptionName, "cartesian", "Trajectory: cartesian or radial")
	cmd.Flags().Float64Var(&opts.tr, TrOptionName, 50, "Repetition time in ms")
	cmd.Flags().Float64Var(&opts.te, TeOptionName, 25, "Echo time in ms")
	cmd.Flags().Float64Var(&opts.fa, FaOptionName, 12, "Flip angle in degrees")
	cmd.Flags().Float64Var(&opts.field, FieldOptionName, 3, "Field strength in T")
	cmd.Flags().Float64Var(&opts.gmax, GmaxOptionName, 40, "Maximum gradient in mT/m")
	cmd.Flags().Float64Var(&opts.smax, SmaxOptionName, 200, "Maximum slew rate in T/m/s")
	cmd.Flags().Float64Var(&opts.dwell, DwellOptionName, 0.001, "Dwell time in ms")
	cmd.Flags().Float64Var(&opts.duration, DurationOptionName, 300000, "Simulation duration in ms")
	cmd.Flags().Int64Var(&opts.seed, SeedOptionName, 19980408, "RNG seed")
	cmd.Flags().BoolVar(&opts.smaps, SmapsOptionName, false, "Store uniform coil sensitivity maps")
	cmd.Flags().BoolVar(&opts.motion, MotionOptionName, false, "Attach a synthetic motion waveform sideband")
	return cmd
}

func parseInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	values := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func buildConfig(opts *emitOptions) (*mrd.HeaderConfig, error) {
	shape, err := parseInts(opts.shape)
	if err != nil {
		return nil, err
	}
	if len(shape) != 2 && len(shape) != 3 {
		return nil, fmt.Errorf("shape must have 2 or 3 axes, got %d", len(shape))
	}

	fov := make([]float64, len(shape))
	if opts.fov != "" {
		fovInts, err := parseInts(opts.fov)
		if err != nil {
			return nil, err
		}
		if len(fovInts) != len(shape) {
			return nil, fmt.Errorf("fov must have the same number of axes as shape")
		}
		for i, v := range fovInts {
			fov[i] = float64(v)
		}
	} else {
		for i, s := range shape {
			fov[i] = float64(s) * 3
		}
	}

	cfg := &mrd.HeaderConfig{
		Shape:        shape,
		FovMm:        fov,
		NumCoils:     opts.coils,
		FieldT:       opts.field,
		TRms:         opts.tr,
		TEms:         opts.te,
		FlipAngleDeg: opts.fa,
		GMax:         opts.gmax,
		SMax:         opts.smax,
		DwellTimeMs:  opts.dwell,
		MaxSimTimeMs: opts.duration,
		RngSeed:      opts.seed,
	}

	switch opts.trajectory {
	case "cartesian":
		cfg.Trajectory = mrd.TrajectoryCartesian
		cfg.SamplesPerShot = shape[len(shape)-1]
		cfg.ShotsPerFrame = 1
		for _, s := range shape[:len(shape)-1] {
			cfg.ShotsPerFrame *= s
		}
	case "radial":
		cfg.Trajectory = mrd.TrajectoryOther
		cfg.ShotsPerFrame = opts.shots
		cfg.SamplesPerShot = opts.samples
	default:
		return nil, fmt.Errorf("unknown trajectory %q", opts.trajectory)
	}

	if opts.motion {
		cfg.Waveforms = []mrd.WaveformDecl{
			{
				ID:   motionWaveformID,
				Name: "motion",
				Params: []mrd.ParamDecl{
					{Name: "domain", Encoding: mrd.ParamString, Value: "time"},
					{Name: "channels", Encoding: mrd.ParamLong, Value: strconv.Itoa(motionChannels)},
				},
			},
		}
	}

	return cfg, nil
}

func run(opts *emitOptions) error {
	cfg, err := buildConfig(opts)
	if err != nil {
		return err
	}

	var src mrd.FrameSource
	if cfg.Trajectory == mrd.TrajectoryCartesian {
		src, err = sampler.NewCartesian(cfg)
	} else {
		src, err = sampler.NewRadial(cfg)
	}
	if err != nil {
		return err
	}

	container, err := mrd.Create(opts.output, cfg)
	if err != nil {
		return err
	}
	mrd.CloseOnExit(container)
	defer container.Close()

	if err := mrd.NewFrameEmitter(container).EmitAll(src); err != nil {
		return err
	}

	if opts.smaps {
		if err := writeSmaps(container, cfg); err != nil {
			return err
		}
	}
	if opts.motion {
		if err := writeMotion(container, cfg); err != nil {
			return err
		}
	}

	reps, _ := cfg.PlanRepetitions()
	log.Info("Wrote %d repetitions to %s", reps, opts.output)
	return nil
}

// writeSmaps stores uniform sensitivity maps, one volume per coil, and
// an identity coil noise covariance alongside
func writeSmaps(container *mrd.Container, cfg *mrd.HeaderConfig) error {
	data := make([]float32, cfg.NumCoils*cfg.VolumeSize())
	for i := range data {
		data[i] = 1.0 / float32(cfg.NumCoils)
	}
	err := container.WriteImage(&mrd.Image{
		Name: mrd.SmapsImageName,
		Meta: mrd.ImageMeta{Shape: append([]int{cfg.NumCoils}, cfg.Shape...)},
		Data: data,
	})
	if err != nil {
		return err
	}

	cov := make([]float32, cfg.NumCoils*cfg.NumCoils)
	for c := 0; c < cfg.NumCoils; c++ {
		cov[c*cfg.NumCoils+c] = 1
	}
	return container.WriteImage(&mrd.Image{
		Name: mrd.CoilCovImageName,
		Meta: mrd.ImageMeta{Shape: []int{cfg.NumCoils, cfg.NumCoils}},
		Data: cov,
	})
}

// writeMotion attaches one rigid-motion waveform record per repetition,
// a seeded random walk over 6 channels
func writeMotion(container *mrd.Container, cfg *mrd.HeaderConfig) error {
	reps, _ := cfg.PlanRepetitions()
	rng := rand.New(rand.NewSource(cfg.RngSeed + 1))
	state := make([]float32, motionChannels)

	frameTRUs := float32(cfg.TRms * float64(cfg.ShotsPerFrame) * 1000)
	for rep := 0; rep < reps; rep++ {
		data := make([][]float32, motionChannels)
		for ch := range data {
			state[ch] += float32(rng.NormFloat64()) * 0.05
			data[ch] = []float32{state[ch]}
		}
		w := &layers.WaveformLayer{
			WaveformHeader: layers.WaveformHeader{
				WaveformID:   motionWaveformID,
				Channels:     motionChannels,
				NumSamples:   1,
				Timestamp:    uint64(rep),
				SampleTimeUs: frameTRUs,
			},
			Data: data,
		}
		if err := container.AppendWaveform(w); err != nil {
			return err
		}
	}
	return nil
}
