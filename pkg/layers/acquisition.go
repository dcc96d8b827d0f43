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
	// AcquisitionLayerNum identifies the layer
	AcquisitionLayerNum = 2107

	// AcquisitionHeaderSize is the size of the fixed acquisition record header
	AcquisitionHeaderSize = 40
)

type AcquisitionFlags uint64

// Flag bit positions follow the ISMRMRD acquisition flag numbering,
// flag value is 1 << (position - 1)
const (
	FlagFirstInEncodeStep1 AcquisitionFlags = 1 << 0
	FlagLastInEncodeStep1  AcquisitionFlags = 1 << 1
	FlagFirstInRepetition  AcquisitionFlags = 1 << 12
	FlagLastInRepetition   AcquisitionFlags = 1 << 13
	FlagFirstInMeasurement AcquisitionFlags = 1 << 23
	FlagLastInMeasurement  AcquisitionFlags = 1 << 24
)

func (f AcquisitionFlags) Has(flag AcquisitionFlags) bool {
	return f&flag != 0
}

func (f *AcquisitionFlags) Set(flag AcquisitionFlags) {
	*f |= flag
}

func (f *AcquisitionFlags) Clear(flag AcquisitionFlags) {
	*f &^= flag
}

// AcquisitionHeader ... // 40 bytes
type AcquisitionHeader struct {
	ScanCounter       uint64
	Flags             AcquisitionFlags
	Repetition        uint32
	Shot              uint32
	NumCoils          uint16
	NumSamples        uint16
	TrajDim           uint16
	ReadoutDurationUs float32
}

// AcquisitionLayer is one flagged acquisition record: fixed header,
// trajectory locations and per-coil complex samples
type AcquisitionLayer struct {
	layers.BaseLayer
	AcquisitionHeader
	// Traj holds NumSamples*TrajDim float32, sample-major
	Traj []float32
	// Data holds NumCoils slices of NumSamples complex samples
	Data [][]complex64
}

var AcquisitionLayerType = gopacket.RegisterLayerType(AcquisitionLayerNum,
	gopacket.LayerTypeMetadata{Name: "AcquisitionLayerType", Decoder: gopacket.DecodeFunc(DecodeAcquisitionLayer)})

// LayerType returns the type of the acquisition layer in the layer catalog
func (acq *AcquisitionLayer) LayerType() gopacket.LayerType {
	return AcquisitionLayerType
}

// SerializedSize returns the total record size for the counts declared in
// the header
func (h *AcquisitionHeader) SerializedSize() int {
	trajBytes := int(h.NumSamples) * int(h.TrajDim) * 4
	dataBytes := int(h.NumCoils) * int(h.NumSamples) * 8
	return AcquisitionHeaderSize + trajBytes + dataBytes
}

// Serialize AcquisitionHeader ...
func (h *AcquisitionHeader) Serialize(buf []byte) error {
	binary.LittleEndian.PutUint64(buf[0:8], h.ScanCounter)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(h.Flags))
	binary.LittleEndian.PutUint32(buf[16:20], h.Repetition)
	binary.LittleEndian.PutUint32(buf[20:24], h.Shot)
	binary.LittleEndian.PutUint16(buf[24:26], h.NumCoils)
	binary.LittleEndian.PutUint16(buf[26:28], h.NumSamples)
	binary.LittleEndian.PutUint16(buf[28:30], h.TrajDim)
	binary.LittleEndian.PutUint16(buf[30:32], 0)
	binary.LittleEndian.PutUint32(buf[32:36], math.Float32bits(h.ReadoutDurationUs))
	binary.LittleEndian.PutUint32(buf[36:40], 0)
	return nil
}

// SerializeTo serializes the acquisition layer into bytes and writes the
// bytes to the SerializeBuffer
func (acq *AcquisitionLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	headerBytes, err := b.AppendBytes(AcquisitionHeaderSize)
	if err != nil {
		return err
	}
	acq.AcquisitionHeader.Serialize(headerBytes)

	trajBytes, err := b.AppendBytes(int(acq.NumSamples) * int(acq.TrajDim) * 4)
	if err != nil {
		return err
	}
	for i, v := range acq.Traj {
		binary.LittleEndian.PutUint32(trajBytes[i*4:i*4+4], math.Float32bits(v))
	}

	dataBytes, err := b.AppendBytes(int(acq.NumCoils) * int(acq.NumSamples) * 8)
	if err != nil {
		return err
	}
	offset := 0
	for c := 0; c < int(acq.NumCoils); c++ {
		for s := 0; s < int(acq.NumSamples); s++ {
			v := acq.Data[c][s]
			binary.LittleEndian.PutUint32(dataBytes[offset:offset+4], math.Float32bits(real(v)))
			binary.LittleEndian.PutUint32(dataBytes[offset+4:offset+8], math.Float32bits(imag(v)))
			offset += 8
		}
	}

	return nil
}

// DecodeAcquisitionHeader ...
func DecodeAcquisitionHeader(data []byte) (*AcquisitionHeader, error) {
	if len(data) < AcquisitionHeaderSize {
		return nil, ErrShortRecord{What: "Acquisition header", Want: AcquisitionHeaderSize, Got: len(data)}
	}
	return &AcquisitionHeader{
		ScanCounter:       binary.LittleEndian.Uint64(data[0:8]),
		Flags:             AcquisitionFlags(binary.LittleEndian.Uint64(data[8:16])),
		Repetition:        binary.LittleEndian.Uint32(data[16:20]),
		Shot:              binary.LittleEndian.Uint32(data[20:24]),
		NumCoils:          binary.LittleEndian.Uint16(data[24:26]),
		NumSamples:        binary.LittleEndian.Uint16(data[26:28]),
		TrajDim:           binary.LittleEndian.Uint16(data[28:30]),
		ReadoutDurationUs: math.Float32frombits(binary.LittleEndian.Uint32(data[32:36])),
	}, nil
}

func (acq *AcquisitionLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	header, err := DecodeAcquisitionHeader(data)
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
		return ErrShortRecord{What: "Acquisition", Want: header.SerializedSize(), Got: len(data)}
	}

	acq.AcquisitionHeader = *header
	acq.BaseLayer = layers.BaseLayer{
		Contents: data[:AcquisitionHeaderSize],
		Payload:  data[AcquisitionHeaderSize:header.SerializedSize()],
	}

	offset := AcquisitionHeaderSize
	nTraj := int(header.NumSamples) * int(header.TrajDim)
	acq.Traj = make([]float32, nTraj)
	for i := 0; i < nTraj; i++ {
		acq.Traj[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset : offset+4]))
		offset += 4
	}

	acq.Data = make([][]complex64, header.NumCoils)
	for c := 0; c < int(header.NumCoils); c++ {
		acq.Data[c] = make([]complex64, header.NumSamples)
		for s := 0; s < int(header.NumSamples); s++ {
			re := math.Float32frombits(binary.LittleEndian.Uint32(data[offset : offset+4]))
			im := math.Float32frombits(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
			acq.Data[c][s] = complex(re, im)
			offset += 8
		}
	}

	return nil
}

func DecodeAcquisitionLayer(data []byte, p gopacket.PacketBuilder) error {
	acq := &AcquisitionLayer{}
	err := acq.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(acq)
	return nil
}

// TrajAt returns the trajectory coordinates of one sample
func (acq *AcquisitionLayer) TrajAt(sample int) []float32 {
	dim := int(acq.TrajDim)
	return acq.Traj[sample*dim : (sample+1)*dim]
}
