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

package info

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neurosim-lab/go-mrd/pkg/config"
	"github.com/neurosim-lab/go-mrd/pkg/mrd"
)

const (
	ContainerOptionName = "container"
	RawOptionName       = "raw"
)

func NewCommand() *cobra.Command {
	var container string
	var raw bool
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the parsed header of a scan container",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container == "" {
				container = cfg.Container
			}

			c, err := mrd.Open(container)
			if err != nil {
				return err
			}
			defer c.Close()

			if raw {
				blob, err := c.RawHeader()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(blob))
				return nil
			}

			out := cmd.OutOrStdout()
			hc := c.Config
			reps, exact := hc.PlanRepetitions()
			fmt.Fprintf(out, "Container:        %s\n", container)
			fmt.Fprintf(out, "Shape:            %v\n", hc.Shape)
			fmt.Fprintf(out, "FOV (mm):         %v\n", hc.FovMm)
			fmt.Fprintf(out, "Coils:            %d\n", hc.NumCoils)
			fmt.Fprintf(out, "Trajectory:       %s\n", hc.Trajectory)
			fmt.Fprintf(out, "Shots/frame:      %d\n", hc.ShotsPerFrame)
			fmt.Fprintf(out, "Samples/shot:     %d\n", hc.SamplesPerShot)
			fmt.Fprintf(out, "Field (T):        %g\n", hc.FieldT)
			fmt.Fprintf(out, "TR/TE (ms):       %g / %g\n", hc.TRms, hc.TEms)
			fmt.Fprintf(out, "Flip angle (deg): %g\n", hc.FlipAngleDeg)
			fmt.Fprintf(out, "Gmax/Smax:        %g / %g\n", hc.GMax, hc.SMax)
			fmt.Fprintf(out, "Dwell time (ms):  %g\n", hc.DwellTimeMs)
			fmt.Fprintf(out, "Sim time (ms):    %g\n", hc.MaxSimTimeMs)
			fmt.Fprintf(out, "RNG seed:         %d\n", hc.RngSeed)
			fmt.Fprintf(out, "Repetitions:      %d (exact fit: %v)\n", reps, exact)
			fmt.Fprintf(out, "Acquisitions:     %d\n", c.NumAcquisitions())
			fmt.Fprintf(out, "Waveforms:        %d\n", c.NumWaveforms())
			fmt.Fprintf(out, "Images:           %v\n", c.ImageNames())
			return nil
		},
	}
	cmd.Flags().StringVar(&container, ContainerOptionName, "", "Container file to inspect")
	cmd.Flags().BoolVar(&raw, RawOptionName, false, "Print the raw XML header blob")
	return cmd
}
