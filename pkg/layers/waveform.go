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

package layers

import (
	"encoding/binary"
	"math"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	// WaveformLayerNum identifies the layer
	WaveformLayerNum = 2108

	// WaveformHeaderSize is the size of the fixed waveform record header
	WaveformHeaderSize = 24
)

// WaveformHeader ... // 24 bytes
type WaveformHeader struct {
	WaveformID   uint16
	Channels     uint16
	NumSamples   uint32
	Timestamp    uint64
	SampleTimeUs float32
}

// WaveformLayer is one time-stamped sideband record: physiological or
// motion samples attached to the same container as the k-space stream
type WaveformLayer struct {
	layers.BaseLayer
	WaveformHeader
	// Data holds Channels slices of NumSamples float32
	Data [][]float32
}

var WaveformLayerType = gopacket.RegisterLayerType(WaveformLayerNum,
	gopacket.LayerTypeMetadata{Name: "WaveformLayerType", Decoder: gopacket.DecodeFunc(DecodeWaveformLayer)})

// LayerType returns the type of the waveform layer in the layer catalog
func (w *WaveformLayer) LayerType() gopacket.LayerType {
	return WaveformLayerType
}

// SerializedSize returns the total record size for the counts declared in
// the header
func (h *WaveformHeader) SerializedSize() int {
	return WaveformHeaderSize + int(h.Channels)*int(h.NumSamples)*4
}

// Serialize WaveformHeader ...
func (h *WaveformHeader) Serialize(buf []byte) error {
	binary.LittleEndian.PutUint16(buf[0:2], h.WaveformID)
	binary.LittleEndian.PutUint16(buf[2:4], h.Channels)
	binary.LittleEndian.PutUint32(buf[4:8], h.NumSamples)
	binary.LittleEndian.PutUint64(buf[8:16], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(h.SampleTimeUs))
	binary.LittleEndian.PutUint32(buf[20:24], 0)
	return nil
}

// SerializeTo serializes the waveform layer into bytes and writes the bytes
// to the SerializeBuffer
func (w *WaveformLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	headerBytes, err := b.AppendBytes(WaveformHeaderSize)
	if err != nil {
		return err
	}
	w.WaveformHeader.Serialize(headerBytes)

	dataBytes, err := b.AppendBytes(int(w.Channels) * int(w.NumSamples) * 4)
	if err != nil {
		return err
	}
	offset := 0
	for c := 0; c < int(w.Channels); c++ {
		for s := 0; s < int(w.NumSamples); s++ {
			binary.LittleEndian.PutUint32(dataBytes[offset:offset+4], math.Float32bits(w.Data[c][s]))
			offset += 4
		}
	}

	return nil
}

// DecodeWaveformHeader ...
func DecodeWaveformHeader(data []byte) (*WaveformHeader, error) {
	if len(data) < WaveformHeaderSize {
		return nil, ErrShortRecord{What: "Waveform header", Want: WaveformHeaderSize, Got: len(data)}
	}
	return &WaveformHeader{
		WaveformID:   binary.LittleEndian.Uint16(data[0:2]),
		Channels:     binary.LittleEndian.Uint16(data[2:4]),
		NumSamples:   binary.LittleEndian.Uint32(data[4:8]),
		Timestamp:    binary.LittleEndian.Uint64(data[8:16]),
		SampleTimeUs: math.Float32frombits(binary.LittleEndian.Uint32(data[16:20])),
	}, nil
}

func (w *WaveformLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	header, err := DecodeWaveformHeader(data)
	if err != nil {
		if df != nil {
			df.SetTruncated()
		}
		return err
	}

	if len(data) < header.SerializedSize() {
		if df != nil {
			df.SetTruncated()
		}
		return ErrShortRecord{What: "Waveform", Want: header.SerializedSize(), Got: len(data)}
	}

	w.WaveformHeader = *header
	w.BaseLayer = layers.BaseLayer{
		Contents: data[:WaveformHeaderSize],
		Payload:  data[WaveformHeaderSize:header.SerializedSize()],
	}

	offset := WaveformHeaderSize
	w.Data = make([][]float32, header.Channels)
	for c := 0; c < int(header.Channels); c++ {
		w.Data[c] = make([]float32, header.NumSamples)
		for s := 0; s < int(header.NumSamples); s++ {
			w.Data[c][s] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset : offset+4]))
			offset += 4
		}
	}

	return nil
}

func DecodeWaveformLayer(data []byte, p gopacket.PacketBuilder) error {
	w := &WaveformLayer{}
	err := w.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(w)
	return nil
}
