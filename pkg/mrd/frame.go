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

// Frame is one fully assembled repetition worth of k-space data plus its
// sampling geometry.
//
// Cartesian frames carry Data as a dense (coils, shape...) volume in
// row-major order together with a sampling Mask over the volume.
// Non-Cartesian frames carry Data as (coils, shots, samples) together with
// the Traj array of (shots, samples, dim) continuous coordinates.
//
// A frame yielded by an assembler aliases the assembler's reuse buffer and
// stays valid until the next Next call. Use Clone to retain it.
type Frame struct {
	Repetition int
	NumCoils   int
	Kind       TrajectoryKind

	// cartesian geometry
	Shape []int
	Mask  []bool

	// non-cartesian geometry
	Shots   int
	Samples int
	Dim     int
	Traj    []float32

	Data []complex64
}

// voxelIndex flattens grid indices in row-major order
func voxelIndex(shape []int, idx []int) int {
	flat := 0
	for d, i := range idx {
		flat = flat*shape[d] + i
	}
	return flat
}

// VolumeSize returns the voxel count of a cartesian frame
func (f *Frame) VolumeSize() int {
	size := 1
	for _, s := range f.Shape {
		size *= s
	}
	return size
}

// At returns the cartesian sample of one coil at the given grid indices
func (f *Frame) At(coil int, idx ...int) complex64 {
	return f.Data[coil*f.VolumeSize()+voxelIndex(f.Shape, idx)]
}

// MaskAt reports whether the voxel at the given grid indices was sampled
func (f *Frame) MaskAt(idx ...int) bool {
	return f.Mask[voxelIndex(f.Shape, idx)]
}

// Sample returns the non-cartesian sample of one coil at (shot, sample)
func (f *Frame) Sample(coil, shot, sample int) complex64 {
	return f.Data[(coil*f.Shots+shot)*f.Samples+sample]
}

// TrajAt returns the non-cartesian coordinates of (shot, sample)
func (f *Frame) TrajAt(shot, sample int) []float32 {
	base := (shot*f.Samples + sample) * f.Dim
	return f.Traj[base : base+f.Dim]
}

// Clone deep-copies the frame out of the assembler's reuse buffer
func (f *Frame) Clone() *Frame {
	clone := *f
	clone.Shape = append([]int(nil), f.Shape...)
	clone.Data = append([]complex64(nil), f.Data...)
	clone.Mask = append([]bool(nil), f.Mask...)
	clone.Traj = append([]float32(nil), f.Traj...)
	return &clone
}
