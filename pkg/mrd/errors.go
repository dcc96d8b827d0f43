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
)

// ErrMalformedHeader returned when a required header field is absent or
// unparsable. Timing and hardware parameters are never silently defaulted.
type ErrMalformedHeader struct {
	Field string
}

func (e ErrMalformedHeader) Error() string {
	return fmt.Sprintf("Malformed container header: missing or invalid field: %s", e.Field)
}

// ErrFlagSequence returned when the boundary flags of the record stream are
// out of order. The stream is considered corrupt from that point on.
type ErrFlagSequence struct {
	ScanCounter uint64
	What        string
}

func (e ErrFlagSequence) Error() string {
	return fmt.Sprintf("Flag sequence error at scan counter %d: %s", e.ScanCounter, e.What)
}

// ErrTruncatedStream returned when the record stream ends in the middle of
// a repetition, i.e. the closing flag was never seen
type ErrTruncatedStream struct {
	ScanCounter uint64
	ShotsSeen   int
}

func (e ErrTruncatedStream) Error() string {
	return fmt.Sprintf("Record stream truncated mid-repetition after scan counter %d (%d shots seen)", e.ScanCounter, e.ShotsSeen)
}

// ErrRecordGeometry returned when a record does not fit the geometry the
// header declares: wrong coil count, sample count or a trajectory location
// outside the grid
type ErrRecordGeometry struct {
	ScanCounter uint64
	What        string
}

func (e ErrRecordGeometry) Error() string {
	return fmt.Sprintf("Record geometry error at scan counter %d: %s", e.ScanCounter, e.What)
}

// ErrContainerNotFound returned when opening a file that does not exist or
// is not a scan container
type ErrContainerNotFound struct {
	Path string
	Err  error
}

func (e ErrContainerNotFound) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Container not found: %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("Container not found: %s", e.Path)
}

// ErrContainerWrite returned when the destination container can not be
// created, replaced or written
type ErrContainerWrite struct {
	Path string
	Err  error
}

func (e ErrContainerWrite) Error() string {
	return fmt.Sprintf("Container write failed: %s: %v", e.Path, e.Err)
}

// ErrUnknownParameterEncoding returned when a waveform catalog parameter
// declares an encoding that is none of long, double, string, base64
type ErrUnknownParameterEncoding struct {
	Encoding string
	Waveform string
}

func (e ErrUnknownParameterEncoding) Error() string {
	return fmt.Sprintf("Unknown parameter encoding %q in waveform %q", e.Encoding, e.Waveform)
}

// ErrWaveformNotFound returned when a waveform index is out of range or its
// type id is not declared in the catalog
type ErrWaveformNotFound struct {
	Index int
	What  string
}

func (e ErrWaveformNotFound) Error() string {
	return fmt.Sprintf("Waveform %d not found: %s", e.Index, e.What)
}
