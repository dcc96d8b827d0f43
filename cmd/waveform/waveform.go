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

package waveform

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/neurosim-lab/go-mrd/pkg/config"
	"github.com/neurosim-lab/go-mrd/pkg/mrd"
)

const (
	ContainerOptionName = "container"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waveform",
		Short: "Inspect the waveform sideband of a container",
	}
	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewShowCommand())
	return cmd
}

func openContainer(container string) (*mrd.Container, error) {
	if container == "" {
		cfg := config.NewDefaultConfig()
		cfg.Load()
		container = cfg.Container
	}
	return mrd.Open(container)
}

func NewListCommand() *cobra.Command {
	var container string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all sideband entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(container)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			for i, entry := range c.ReadAllDynamics() {
				samples := 0
				if len(entry.Data) > 0 {
					samples = len(entry.Data[0])
				}
				fmt.Fprintf(out, "%4d: %s (type %d) timestamp %d, %d channels x %d samples\n",
					i, entry.Name, entry.WaveformID, entry.Timestamp, len(entry.Data), samples)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&container, ContainerOptionName, "", "Container file to inspect")
	return cmd
}

func NewShowCommand() *cobra.Command {
	var container string
	cmd := &cobra.Command{
		Use:   "show <index>",
		Short: "Show one sideband entry with its parameters and samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}

			c, err := openContainer(container)
			if err != nil {
				return err
			}
			defer c.Close()

			entry, err := c.ReadDynamic(index)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:      %s\n", entry.Name)
			fmt.Fprintf(out, "Type:      %d\n", entry.WaveformID)
			fmt.Fprintf(out, "Timestamp: %d\n", entry.Timestamp)
			fmt.Fprintf(out, "Sample dt: %g us\n", entry.SampleTimeUs)
			for name, value := range entry.Params {
				fmt.Fprintf(out, "Param %s = %v\n", name, value)
			}
			for ch, samples := range entry.Data {
				fmt.Fprintf(out, "ch%d: %v\n", ch, samples)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&container, ContainerOptionName, "", "Container file to inspect")
	return cmd
}
