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
	"reflect"
	"testing"

	"github.com/google/gopacket"
)

func TestAcquisitionRoundTrip(t *testing.T) {
	var flags AcquisitionFlags
	flags.Set(FlagFirstInRepetition)
	flags.Set(FlagFirstInMeasurement)

	want := &AcquisitionLayer{
		AcquisitionHeader: AcquisitionHeader{
			ScanCounter:       42,
			Flags:             flags,
			Repetition:        3,
			Shot:              1,
			NumCoils:          2,
			NumSamples:        4,
			TrajDim:           3,
			ReadoutDurationUs: 8.5,
		},
		Traj: []float32{
			0.1, 0.2, 0.3, 0.4, 0.5, 0.6,
			-0.1, -0.2, -0.3, -0.4, -0.5, -0.6,
		},
		Data: [][]complex64{
			{1 + 2i, 3 + 4i, 5 + 6i, 7 + 8i},
			{-1 - 2i, -3 - 4i, -5 - 6i, -7 - 8i},
		},
	}

	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, want); err != nil {
		t.Fatalf("SerializeLayers failed: %v", err)
	}
	if len(buf.Bytes()) != want.SerializedSize() {
		t.Errorf("Serialized %d bytes, SerializedSize says %d", len(buf.Bytes()), want.SerializedSize())
	}

	got := &AcquisitionLayer{}
	if err := got.DecodeFromBytes(buf.Bytes(), nil); err != nil {
		t.Fatalf("DecodeFromBytes failed: %v", err)
	}

	if got.AcquisitionHeader != want.AcquisitionHeader {
		t.Errorf("Header mismatch:\nwant %+v\ngot  %+v", want.AcquisitionHeader, got.AcquisitionHeader)
	}
	if !reflect.DeepEqual(got.Traj, want.Traj) {
		t.Errorf("Trajectory mismatch: got %v, want %v", got.Traj, want.Traj)
	}
	if !reflect.DeepEqual(got.Data, want.Data) {
		t.Errorf("Data mismatch: got %v, want %v", got.Data, want.Data)
	}
}

func TestAcquisitionTrajAt(t *testing.T) {
	acq := &AcquisitionLayer{
		AcquisitionHeader: AcquisitionHeader{NumSamples: 2, TrajDim: 2},
		Traj:              []float32{1, 2, 3, 4},
	}
	if got := acq.TrajAt(1); !reflect.DeepEqual(got, []float32{3, 4}) {
		t.Errorf("TrajAt(1) = %v, want [3 4]", got)
	}
}

func TestDecodeShortAcquisition(t *testing.T) {
	acq := &AcquisitionLayer{}
	err := acq.DecodeFromBytes(make([]byte, AcquisitionHeaderSize-1), nil)
	if _, ok := err.(ErrShortRecord); !ok {
		t.Fatalf("Expected ErrShortRecord, got %v", err)
	}

	// a valid header whose declared payload is missing
	header := AcquisitionHeader{NumCoils: 2, NumSamples: 8, TrajDim: 2}
	buf := make([]byte, AcquisitionHeaderSize)
	header.Serialize(buf)
	err = acq.DecodeFromBytes(buf, nil)
	short, ok := err.(ErrShortRecord)
	if !ok {
		t.Fatalf("Expected ErrShortRecord, got %v", err)
	}
	if short.Want != header.SerializedSize() {
		t.Errorf("Error wants %d bytes, SerializedSize is %d", short.Want, header.SerializedSize())
	}
}

func TestAcquisitionFlags(t *testing.T) {
	var f AcquisitionFlags
	f.Set(FlagFirstInRepetition)
	f.Set(FlagLastInMeasurement)
	if !f.Has(FlagFirstInRepetition) || !f.Has(FlagLastInMeasurement) {
		t.Errorf("Flags %064b missing a set bit", f)
	}
	if f.Has(FlagLastInRepetition) {
		t.Errorf("Flags %064b report an unset bit", f)
	}
	f.Clear(FlagFirstInRepetition)
	if f.Has(FlagFirstInRepetition) {
		t.Errorf("Flags %064b still report a cleared bit", f)
	}
}

func TestWaveformRoundTrip(t *testing.T) {
	want := &WaveformLayer{
		WaveformHeader: WaveformHeader{
			WaveformID:   1,
			Channels:     2,
			NumSamples:   3,
			Timestamp:    1000,
			SampleTimeUs: 250,
		},
		Data: [][]float32{{1, 2, 3}, {4, 5, 6}},
	}

	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, want); err != nil {
		t.Fatalf("SerializeLayers failed: %v", err)
	}

	got := &WaveformLayer{}
	if err := got.DecodeFromBytes(buf.Bytes(), nil); err != nil {
		t.Fatalf("DecodeFromBytes failed: %v", err)
	}
	if got.WaveformHeader != want.WaveformHeader {
		t.Errorf("Header mismatch:\nwant %+v\ngot  %+v", want.WaveformHeader, got.WaveformHeader)
	}
	if !reflect.DeepEqual(got.Data, want.Data) {
		t.Errorf("Data mismatch: got %v, want %v", got.Data, want.Data)
	}
}
