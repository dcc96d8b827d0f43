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

package remote

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neurosim-lab/go-mrd/pkg/client"
	"github.com/neurosim-lab/go-mrd/pkg/config"
)

const (
	HostOptionName = "host"
	PortOptionName = "port"
)

func NewCommand() *cobra.Command {
	var host string
	var port int
	cfg := config.NewDefaultConfig()
	cfg.Load()

	buildClient := func() *client.ApiClient {
		if host != "" {
			cfg.Api.Host = host
		}
		if port != 0 {
			cfg.Api.Port = port
		}
		return client.NewApiClient(cfg)
	}

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Query a running inspection API server",
	}

	cmd.PersistentFlags().StringVar(&host, HostOptionName, "", "Server address")
	cmd.PersistentFlags().IntVar(&port, PortOptionName, 0, "Server port")

	cmd.AddCommand(&cobra.Command{
		Use:   "header",
		Short: "Fetch the parsed container header",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := buildClient().Header()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "frames",
		Short: "Fetch the per-frame summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := buildClient().Frames()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "waveforms",
		Short: "Fetch the sideband summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := buildClient().Waveforms()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "image <name>",
		Short: "Fetch the metadata of a named image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := buildClient().Image(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	})

	return cmd
}
