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
	"fmt"
	"strconv"

	"sigs.k8s.io/yaml"

	"github.com/neurosim-lab/go-mrd/pkg/log"
)

// WaveformInfo is the decoded catalog entry for one waveform type
type WaveformInfo struct {
	Name   string
	Params map[string]interface{}
}

// DynamicEntry is one sideband sample resolved against the catalog
type DynamicEntry struct {
	WaveformID   int
	Name         string
	Timestamp    uint64
	SampleTimeUs float32
	// Data holds channels x samples
	Data   [][]float32
	Params map[string]interface{}
}

// ParseWaveformCatalog decodes the waveform type declarations of the
// header into their typed parameter values. base64 parameters carry a
// yaml document and decode to its structured value. A declared encoding
// outside {long, double, string, base64} is ErrUnknownParameterEncoding.
func ParseWaveformCatalog(cfg *HeaderConfig) (map[int]WaveformInfo, error) {
	catalog := make(map[int]WaveformInfo)
	for _, decl := range cfg.Waveforms {
		params := make(map[string]interface{})
		for _, p := range decl.Params {
			switch p.Encoding {
			case ParamLong:
				v, err := strconv.ParseInt(p.Value, 10, 64)
				if err != nil {
					return nil, ErrMalformedHeader{Field: p.Name}
				}
				params[p.Name] = v
			case ParamDouble:
				v, err := strconv.ParseFloat(p.Value, 64)
				if err != nil {
					return nil, ErrMalformedHeader{Field: p.Name}
				}
				params[p.Name] = v
			case ParamString:
				params[p.Name] = p.Value
			case ParamBase64:
				blob, err := base64.StdEncoding.DecodeString(p.Value)
				if err != nil {
					return nil, ErrMalformedHeader{Field: p.Name}
				}
				var v interface{}
				if err := yaml.Unmarshal(blob, &v); err != nil {
					return nil, ErrMalformedHeader{Field: p.Name}
				}
				params[p.Name] = v
			default:
				return nil, ErrUnknownParameterEncoding{
					Encoding: string(p.Encoding),
					Waveform: decl.Name,
				}
			}
		}
		catalog[decl.ID] = WaveformInfo{Name: decl.Name, Params: params}
	}
	return catalog, nil
}

// WaveformCatalog parses the catalog once and caches it for the lifetime
// of the container
func (c *Container) WaveformCatalog() (map[int]WaveformInfo, error) {
	c.catalogOnce.Do(func() {
		c.catalog, c.catalogErr = ParseWaveformCatalog(c.Config)
	})
	return c.catalog, c.catalogErr
}

// ReadDynamic reads one waveform sample on demand and resolves its type
// against the cached catalog
func (c *Container) ReadDynamic(i int) (*DynamicEntry, error) {
	catalog, err := c.WaveformCatalog()
	if err != nil {
		return nil, err
	}

	w, err := c.ReadWaveform(i)
	if err != nil {
		return nil, err
	}

	info, ok := catalog[int(w.WaveformID)]
	if !ok {
		return nil, ErrWaveformNotFound{Index: i,
			What: fmt.Sprintf("waveform type %d is not declared in the header catalog", w.WaveformID)}
	}

	return &DynamicEntry{
		WaveformID:   int(w.WaveformID),
		Name:         info.Name,
		Timestamp:    w.Timestamp,
		SampleTimeUs: w.SampleTimeUs,
		Data:         w.Data,
		Params:       info.Params,
	}, nil
}

// ReadAllDynamics collects every sideband entry. Sideband data is
// diagnostic, so a per-item failure is logged and the item skipped rather
// than aborting the collection.
func (c *Container) ReadAllDynamics() []*DynamicEntry {
	var entries []*DynamicEntry
	n := c.NumWaveforms()
	for i := 0; i < n; i++ {
		entry, err := c.ReadDynamic(i)
		if err != nil {
			log.Error("Skipping waveform %d: %v", i, err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}
