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
	"encoding/xml"
	"strconv"
)

// user parameter names carried in the header
const (
	ParamGMax         = "gmax"
	ParamSMax         = "smax"
	ParamDwellTimeMs  = "dwell_time_ms"
	ParamMaxSimTimeMs = "max_sim_time_ms"
	ParamRngSeed      = "rng_seed"
)

// ParseHeader parses the XML header blob into an immutable HeaderConfig.
// Every domain-critical timing and hardware parameter is required, absence
// is ErrMalformedHeader, never a silent default.
func ParseHeader(raw []byte) (*HeaderConfig, error) {
	h := &xmlHeader{}
	if err := xml.Unmarshal(raw, h); err != nil {
		return nil, ErrMalformedHeader{Field: "document"}
	}

	if h.System.ReceiverChannels == nil || *h.System.ReceiverChannels <= 0 {
		return nil, ErrMalformedHeader{Field: "receiverChannels"}
	}
	if h.SequenceParameters.TR == nil {
		return nil, ErrMalformedHeader{Field: "TR"}
	}
	if h.SequenceParameters.TE == nil {
		return nil, ErrMalformedHeader{Field: "TE"}
	}
	if h.SequenceParameters.FlipAngleDeg == nil {
		return nil, ErrMalformedHeader{Field: "flipAngle_deg"}
	}

	userParams := make(map[string]xmlUserParameter)
	for _, p := range h.UserParameters.Params {
		userParams[p.Name] = p
	}

	doubles := make(map[string]float64)
	for _, name := range []string{ParamGMax, ParamSMax, ParamDwellTimeMs, ParamMaxSimTimeMs} {
		p, ok := userParams[name]
		if !ok {
			return nil, ErrMalformedHeader{Field: name}
		}
		v, err := strconv.ParseFloat(p.Value, 64)
		if err != nil {
			return nil, ErrMalformedHeader{Field: name}
		}
		doubles[name] = v
	}

	seedParam, ok := userParams[ParamRngSeed]
	if !ok {
		return nil, ErrMalformedHeader{Field: ParamRngSeed}
	}
	seed, err := strconv.ParseInt(seedParam.Value, 10, 64)
	if err != nil {
		return nil, ErrMalformedHeader{Field: ParamRngSeed}
	}

	cfg := &HeaderConfig{
		NumCoils:       *h.System.ReceiverChannels,
		TRms:           *h.SequenceParameters.TR,
		TEms:           *h.SequenceParameters.TE,
		FlipAngleDeg:   *h.SequenceParameters.FlipAngleDeg,
		GMax:           doubles[ParamGMax],
		SMax:           doubles[ParamSMax],
		DwellTimeMs:    doubles[ParamDwellTimeMs],
		MaxSimTimeMs:   doubles[ParamMaxSimTimeMs],
		RngSeed:        seed,
		ShotsPerFrame:  h.Encoding.EncodingLimits.KspaceEncodingStep1.Maximum,
		SamplesPerShot: h.Encoding.EncodingLimits.KspaceEncodingStep0.Maximum,
	}

	if h.System.SystemFieldStrengthT != nil {
		cfg.FieldT = *h.System.SystemFieldStrengthT
	}

	matrix := h.Encoding.EncodedSpace.MatrixSize
	if matrix.X <= 0 || matrix.Y <= 0 {
		return nil, ErrMalformedHeader{Field: "matrixSize"}
	}
	cfg.Shape = []int{matrix.X, matrix.Y}
	if matrix.Z != nil {
		cfg.Shape = append(cfg.Shape, *matrix.Z)
	}

	fov := h.Encoding.EncodedSpace.FieldOfViewMm
	cfg.FovMm = []float64{fov.X, fov.Y}
	if fov.Z != nil {
		cfg.FovMm = append(cfg.FovMm, *fov.Z)
	}
	if len(cfg.FovMm) != len(cfg.Shape) {
		return nil, ErrMalformedHeader{Field: "fieldOfView_mm"}
	}

	switch h.Encoding.Trajectory {
	case string(TrajectoryCartesian):
		cfg.Trajectory = TrajectoryCartesian
	default:
		cfg.Trajectory = TrajectoryOther
	}

	for _, wi := range h.WaveformInformation {
		decl := WaveformDecl{
			ID:   wi.WaveformType,
			Name: wi.WaveformName,
		}
		for _, p := range wi.UserParameters.Params {
			enc, known := elementEncoding(p.XMLName.Local)
			if !known {
				// Keep the raw element name so the catalog parse can
				// report it.
				enc = ParamEncoding(p.XMLName.Local)
			}
			decl.Params = append(decl.Params, ParamDecl{
				Name:     p.Name,
				Encoding: enc,
				Value:    p.Value,
			})
		}
		cfg.Waveforms = append(cfg.Waveforms, decl)
	}

	return cfg, nil
}

// SerializeHeader is the exact inverse of ParseHeader for the fields it
// controls. Floats survive the round trip bit-for-bit: encoding/xml formats
// them with the shortest representation that parses back to the same value.
func SerializeHeader(cfg *HeaderConfig) ([]byte, error) {
	reps, _ := cfg.PlanRepetitions()

	h := &xmlHeader{
		System: xmlSystemInformation{
			ReceiverChannels:     intPtr(cfg.NumCoils),
			SystemFieldStrengthT: floatPtr(cfg.FieldT),
		},
		SequenceParameters: xmlSequenceParameters{
			TR:           floatPtr(cfg.TRms),
			TE:           floatPtr(cfg.TEms),
			FlipAngleDeg: floatPtr(cfg.FlipAngleDeg),
		},
		Encoding: xmlEncoding{
			Trajectory: string(cfg.Trajectory),
			EncodingLimits: xmlEncodingLimits{
				KspaceEncodingStep0: xmlLimit{Maximum: cfg.SamplesPerShot},
				KspaceEncodingStep1: xmlLimit{Maximum: cfg.ShotsPerFrame},
				Repetition:          xmlLimit{Maximum: reps},
			},
		},
	}

	h.Encoding.EncodedSpace.MatrixSize.X = cfg.Shape[0]
	h.Encoding.EncodedSpace.MatrixSize.Y = cfg.Shape[1]
	h.Encoding.EncodedSpace.FieldOfViewMm.X = cfg.FovMm[0]
	h.Encoding.EncodedSpace.FieldOfViewMm.Y = cfg.FovMm[1]
	if len(cfg.Shape) == 3 {
		h.Encoding.EncodedSpace.MatrixSize.Z = intPtr(cfg.Shape[2])
		h.Encoding.EncodedSpace.FieldOfViewMm.Z = floatPtr(cfg.FovMm[2])
	}

	h.UserParameters.Params = []xmlUserParameter{
		doubleParam(ParamGMax, cfg.GMax),
		doubleParam(ParamSMax, cfg.SMax),
		doubleParam(ParamDwellTimeMs, cfg.DwellTimeMs),
		doubleParam(ParamMaxSimTimeMs, cfg.MaxSimTimeMs),
		{
			XMLName: xml.Name{Local: elemUserParameterLong},
			Name:    ParamRngSeed,
			Value:   strconv.FormatInt(cfg.RngSeed, 10),
		},
	}

	for _, decl := range cfg.Waveforms {
		wi := xmlWaveformInformation{
			WaveformName: decl.Name,
			WaveformType: decl.ID,
		}
		for _, p := range decl.Params {
			wi.UserParameters.Params = append(wi.UserParameters.Params, xmlUserParameter{
				XMLName: xml.Name{Local: encodingElement(p.Encoding)},
				Name:    p.Name,
				Value:   p.Value,
			})
		}
		h.WaveformInformation = append(h.WaveformInformation, wi)
	}

	return xml.MarshalIndent(h, "", "  ")
}

func doubleParam(name string, v float64) xmlUserParameter {
	return xmlUserParameter{
		XMLName: xml.Name{Local: elemUserParameterDouble},
		Name:    name,
		Value:   strconv.FormatFloat(v, 'g', -1, 64),
	}
}

func intPtr(v int) *int {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}
