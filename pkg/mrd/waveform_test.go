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
	"encoding/base64"
	"reflect"
	"testing"

	"github.com/neurosim-lab/go-mrd/pkg/layers"
)

func motionConfig() *HeaderConfig {
	cfg := validConfig()
	cfg.Waveforms = []WaveformDecl{
		{
			ID:   1,
			Name: "motion",
			Params: []ParamDecl{
				{Name: "domain", Encoding: ParamString, Value: "time"},
				{Name: "channels", Encoding: ParamLong, Value: "6"},
				{Name: "scale", Encoding: ParamDouble, Value: "0.25"},
				{Name: "axes", Encoding: ParamBase64,
					Value: base64.StdEncoding.EncodeToString([]byte("- tx\n- ty\n- rz\n"))},
			},
		},
	}
	return cfg
}

// TestParseWaveformCatalog checks every parameter encoding decodes to its
// typed value, base64 payloads included
func TestParseWaveformCatalog(t *testing.T) {
	catalog, err := ParseWaveformCatalog(motionConfig())
	if err != nil {
		t.Fatalf("ParseWaveformCatalog failed: %v", err)
	}

	info, ok := catalog[1]
	if !ok {
		t.Fatalf("Catalog is missing waveform type 1: %v", catalog)
	}
	if info.Name != "motion" {
		t.Errorf("Waveform name %s, want motion", info.Name)
	}
	if v, ok := info.Params["domain"].(string); !ok || v != "time" {
		t.Errorf("domain = %v (%T), want the string time", info.Params["domain"], info.Params["domain"])
	}
	if v, ok := info.Params["channels"].(int64); !ok || v != 6 {
		t.Errorf("channels = %v (%T), want int64 6", info.Params["channels"], info.Params["channels"])
	}
	if v, ok := info.Params["scale"].(float64); !ok || v != 0.25 {
		t.Errorf("scale = %v (%T), want float64 0.25", info.Params["scale"], info.Params["scale"])
	}
	axes, ok := info.Params["axes"].([]interface{})
	if !ok {
		t.Fatalf("axes = %v (%T), want a yaml sequence", info.Params["axes"], info.Params["axes"])
	}
	want := []interface{}{"tx", "ty", "rz"}
	if !reflect.DeepEqual(axes, want) {
		t.Errorf("axes = %v, want %v", axes, want)
	}
}

func TestParseWaveformCatalogUnknownEncoding(t *testing.T) {
	cfg := validConfig()
	cfg.Waveforms = []WaveformDecl{
		{
			ID:   2,
			Name: "ecg",
			Params: []ParamDecl{
				{Name: "rate", Encoding: ParamEncoding("userParameterComplex"), Value: "1+2i"},
			},
		},
	}

	_, err := ParseWaveformCatalog(cfg)
	encErr, ok := err.(ErrUnknownParameterEncoding)
	if !ok {
		t.Fatalf("Expected ErrUnknownParameterEncoding, got %v", err)
	}
	if encErr.Waveform != "ecg" || encErr.Encoding != "userParameterComplex" {
		t.Errorf("Error identifies %s/%s, want ecg/userParameterComplex", encErr.Waveform, encErr.Encoding)
	}
}

func TestParseWaveformCatalogBadValue(t *testing.T) {
	cfg := validConfig()
	cfg.Waveforms = []WaveformDecl{
		{
			ID:     3,
			Name:   "resp",
			Params: []ParamDecl{{Name: "channels", Encoding: ParamLong, Value: "six"}},
		},
	}
	_, err := ParseWaveformCatalog(cfg)
	if _, ok := err.(ErrMalformedHeader); !ok {
		t.Errorf("Expected ErrMalformedHeader, got %v", err)
	}
}

func motionWaveform(id uint16, ts uint64) *layers.WaveformLayer {
	return &layers.WaveformLayer{
		WaveformHeader: layers.WaveformHeader{
			WaveformID:   id,
			Channels:     2,
			NumSamples:   2,
			Timestamp:    ts,
			SampleTimeUs: 500,
		},
		Data: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
	}
}

// TestReadDynamic resolves a stored sample against the catalog
func TestReadDynamic(t *testing.T) {
	container := newTestContainer(t, motionConfig())
	if err := container.AppendWaveform(motionWaveform(1, 250)); err != nil {
		t.Fatalf("AppendWaveform failed: %v", err)
	}

	entry, err := container.ReadDynamic(0)
	if err != nil {
		t.Fatalf("ReadDynamic failed: %v", err)
	}
	if entry.Name != "motion" || entry.WaveformID != 1 {
		t.Errorf("Entry resolved to %s/%d, want motion/1", entry.Name, entry.WaveformID)
	}
	if entry.Timestamp != 250 || entry.SampleTimeUs != 500 {
		t.Errorf("Entry timing %d/%g", entry.Timestamp, entry.SampleTimeUs)
	}
	if !reflect.DeepEqual(entry.Data, [][]float32{{0.1, 0.2}, {0.3, 0.4}}) {
		t.Errorf("Entry data %v", entry.Data)
	}
	if entry.Params["domain"] != "time" {
		t.Errorf("Entry params %v", entry.Params)
	}
}

func TestReadDynamicUndeclaredType(t *testing.T) {
	container := newTestContainer(t, motionConfig())
	if err := container.AppendWaveform(motionWaveform(9, 0)); err != nil {
		t.Fatalf("AppendWaveform failed: %v", err)
	}
	_, err := container.ReadDynamic(0)
	if _, ok := err.(ErrWaveformNotFound); !ok {
		t.Errorf("Expected ErrWaveformNotFound, got %v", err)
	}
}

// TestReadAllDynamicsSkipsBadEntries checks the collection survives an
// undeclared waveform type in the middle of the sideband
func TestReadAllDynamicsSkipsBadEntries(t *testing.T) {
	container := newTestContainer(t, motionConfig())
	for _, wf := range []*layers.WaveformLayer{
		motionWaveform(1, 0),
		motionWaveform(9, 250),
		motionWaveform(1, 500),
	} {
		if err := container.AppendWaveform(wf); err != nil {
			t.Fatalf("AppendWaveform failed: %v", err)
		}
	}

	entries := container.ReadAllDynamics()
	if len(entries) != 2 {
		t.Fatalf("Collected %d entries, want 2", len(entries))
	}
	if entries[0].Timestamp != 0 || entries[1].Timestamp != 500 {
		t.Errorf("Collected timestamps %d and %d, want 0 and 500", entries[0].Timestamp, entries[1].Timestamp)
	}
}
