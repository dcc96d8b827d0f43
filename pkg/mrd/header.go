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
	"math"
)

type TrajectoryKind string

const (
	TrajectoryCartesian TrajectoryKind = "cartesian"
	TrajectoryOther     TrajectoryKind = "other"
)

// ParamEncoding is the declared encoding of a waveform catalog parameter
type ParamEncoding string

const (
	ParamLong   ParamEncoding = "long"
	ParamDouble ParamEncoding = "double"
	ParamString ParamEncoding = "string"
	ParamBase64 ParamEncoding = "base64"
)

// ParamDecl is one named waveform parameter as declared in the header,
// value still in its wire form
type ParamDecl struct {
	Name     string
	Encoding ParamEncoding
	Value    string
}

// WaveformDecl declares one waveform type in the header catalog
type WaveformDecl struct {
	ID     int
	Name   string
	Params []ParamDecl
}

// HeaderConfig is the typed configuration snapshot of a scan container.
// It is derived once per stream and not modified afterwards.
type HeaderConfig struct {
	// Shape is the encoded volume shape, 2 or 3 ints
	Shape []int
	// FovMm is the field of view in mm, same length as Shape
	FovMm []float64

	NumCoils       int
	ShotsPerFrame  int
	SamplesPerShot int
	Trajectory     TrajectoryKind

	FieldT       float64
	TRms         float64
	TEms         float64
	FlipAngleDeg float64

	GMax         float64
	SMax         float64
	DwellTimeMs  float64
	MaxSimTimeMs float64
	RngSeed      int64

	// Waveforms is the sideband catalog declared in the header
	Waveforms []WaveformDecl
}

// Dim returns the trajectory dimensionality
func (cfg *HeaderConfig) Dim() int {
	return len(cfg.Shape)
}

// ReadoutDurationUs derives the per-record sample timing from the dwell
// time and sample count alone, so it is reproducible from the header
func (cfg *HeaderConfig) ReadoutDurationUs() float32 {
	return float32(cfg.DwellTimeMs * float64(cfg.SamplesPerShot) * 1000.0)
}

// PlanRepetitions computes how many complete repetitions fit into the
// configured simulation time. exact reports whether the division left no
// remainder; an inexact fit means the trailing partial repetition is
// discarded by the emitter.
func (cfg *HeaderConfig) PlanRepetitions() (n int, exact bool) {
	frameTR := cfg.TRms * float64(cfg.ShotsPerFrame)
	if frameTR <= 0 {
		return 0, true
	}
	trueCount := cfg.MaxSimTimeMs / frameTR
	n = int(math.Floor(trueCount))
	return n, float64(n) == trueCount
}

// VolumeSize returns the number of voxels of the encoded volume
func (cfg *HeaderConfig) VolumeSize() int {
	size := 1
	for _, s := range cfg.Shape {
		size *= s
	}
	return size
}

// XML document model. The layout follows the usual raw-data header
// structure: system information, one encoding section, sequence parameters,
// free user parameters and the waveform catalog.

type xmlMatrixSize struct {
	X int  `xml:"x"`
	Y int  `xml:"y"`
	Z *int `xml:"z"`
}

type xmlFieldOfView struct {
	X float64  `xml:"x"`
	Y float64  `xml:"y"`
	Z *float64 `xml:"z"`
}

type xmlEncodedSpace struct {
	MatrixSize    xmlMatrixSize  `xml:"matrixSize"`
	FieldOfViewMm xmlFieldOfView `xml:"fieldOfView_mm"`
}

type xmlLimit struct {
	Maximum int `xml:"maximum"`
}

type xmlEncodingLimits struct {
	KspaceEncodingStep0 xmlLimit `xml:"kspace_encoding_step_0"`
	KspaceEncodingStep1 xmlLimit `xml:"kspace_encoding_step_1"`
	Repetition          xmlLimit `xml:"repetition"`
}

type xmlEncoding struct {
	EncodedSpace   xmlEncodedSpace   `xml:"encodedSpace"`
	EncodingLimits xmlEncodingLimits `xml:"encodingLimits"`
	Trajectory     string            `xml:"trajectory"`
}

type xmlSystemInformation struct {
	ReceiverChannels     *int     `xml:"receiverChannels"`
	SystemFieldStrengthT *float64 `xml:"systemFieldStrength_T"`
}

type xmlSequenceParameters struct {
	TR           *float64 `xml:"TR"`
	TE           *float64 `xml:"TE"`
	FlipAngleDeg *float64 `xml:"flipAngle_deg"`
}

type xmlUserParameter struct {
	XMLName xml.Name
	Name    string `xml:"name"`
	Value   string `xml:"value"`
}

type xmlUserParameters struct {
	Params []xmlUserParameter `xml:",any"`
}

type xmlWaveformInformation struct {
	WaveformName   string            `xml:"waveformName"`
	WaveformType   int               `xml:"waveformType"`
	UserParameters xmlUserParameters `xml:"userParameters"`
}

type xmlHeader struct {
	XMLName             xml.Name                 `xml:"ismrmrdHeader"`
	System              xmlSystemInformation     `xml:"acquisitionSystemInformation"`
	Encoding            xmlEncoding              `xml:"encoding"`
	SequenceParameters  xmlSequenceParameters    `xml:"sequenceParameters"`
	UserParameters      xmlUserParameters        `xml:"userParameters"`
	WaveformInformation []xmlWaveformInformation `xml:"waveformInformation"`
}

// element names used for user parameters, one per encoding
const (
	elemUserParameterLong   = "userParameterLong"
	elemUserParameterDouble = "userParameterDouble"
	elemUserParameterString = "userParameterString"
	elemUserParameterBase64 = "userParameterBase64"
)

func encodingElement(enc ParamEncoding) string {
	switch enc {
	case ParamLong:
		return elemUserParameterLong
	case ParamDouble:
		return elemUserParameterDouble
	case ParamString:
		return elemUserParameterString
	case ParamBase64:
		return elemUserParameterBase64
	}
	// unknown encodings carry their element name verbatim
	return string(enc)
}

func elementEncoding(elem string) (ParamEncoding, bool) {
	switch elem {
	case elemUserParameterLong:
		return ParamLong, true
	case elemUserParameterDouble:
		return ParamDouble, true
	case elemUserParameterString:
		return ParamString, true
	case elemUserParameterBase64:
		return ParamBase64, true
	}
	return "", false
}
