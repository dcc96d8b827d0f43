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

package frames

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/neurosim-lab/go-mrd/pkg/config"
	"github.com/neurosim-lab/go-mrd/pkg/log"
	"github.com/neurosim-lab/go-mrd/pkg/mrd"
)

const (
	ContainerOptionName = "container"
	OutOptionName       = "out"
)

func NewCommand() *cobra.Command {
	var container, out string
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Assemble and summarize the k-space frames of a container",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container == "" {
				container = cfg.Container
			}

			c, err := mrd.Open(container)
			if err != nil {
				return err
			}
			defer c.Close()

			assembler, err := mrd.NewAssembler(c)
			if err != nil {
				return err
			}

			var outFile *os.File
			if out != "" {
				outFile, err = os.Create(out)
				if err != nil {
					return err
				}
				defer outFile.Close()
			}

			stdout := cmd.OutOrStdout()
			for {
				frame, err := assembler.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
				printSummary(stdout, frame)
				if outFile != nil {
					if err := binary.Write(outFile, binary.LittleEndian, frame.Data); err != nil {
						return err
					}
				}
			}

			fmt.Fprintf(stdout, "%d frames\n", assembler.FramesYielded())
			if outFile != nil {
				log.Info("Wrote %d frames of raw complex64 to %s", assembler.FramesYielded(), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&container, ContainerOptionName, "", "Container file to decode")
	cmd.Flags().StringVar(&out, OutOptionName, "", "Append assembled frames as raw little-endian complex64")
	return cmd
}

func printSummary(w io.Writer, frame *mrd.Frame) {
	var energy float64
	for _, v := range frame.Data {
		energy += float64(real(v))*float64(real(v)) + float64(imag(v))*float64(imag(v))
	}
	if frame.Kind == mrd.TrajectoryCartesian {
		sampled := 0
		for _, m := range frame.Mask {
			if m {
				sampled++
			}
		}
		fmt.Fprintf(w, "frame %4d: %d/%d voxels sampled, energy %.4g\n",
			frame.Repetition, sampled, frame.VolumeSize(), math.Sqrt(energy))
		return
	}
	fmt.Fprintf(w, "frame %4d: %d shots x %d samples, energy %.4g\n",
		frame.Repetition, frame.Shots, frame.Samples, math.Sqrt(energy))
}
