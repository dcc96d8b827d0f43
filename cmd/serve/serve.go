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

package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neurosim-lab/go-mrd/pkg/config"
	"github.com/neurosim-lab/go-mrd/pkg/log"
	"github.com/neurosim-lab/go-mrd/pkg/mrd"
	"github.com/neurosim-lab/go-mrd/pkg/srv"
)

const (
	ContainerOptionName = "container"
	HostOptionName      = "host"
	PortOptionName      = "port"
)

func NewCommand() *cobra.Command {
	var container, host string
	var port int
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only inspection API over a container",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container == "" {
				container = cfg.Container
			}
			if host != "" {
				cfg.Api.Host = host
			}
			if port != 0 {
				cfg.Api.Port = port
			}

			c, err := mrd.Open(container)
			if err != nil {
				return err
			}
			mrd.CloseOnExit(c)
			defer c.Close()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				log.Info("Received %v, closing containers", sig)
				mrd.CloseAll()
				os.Exit(0)
			}()

			server, err := srv.NewApiServer(context.Background(), cfg, c)
			if err != nil {
				return err
			}
			return server.Run()
		},
	}
	cmd.Flags().StringVar(&container, ContainerOptionName, "", "Container file to serve")
	cmd.Flags().StringVar(&host, HostOptionName, "", "Address to bind. E.g. 127.0.0.1")
	cmd.Flags().IntVar(&port, PortOptionName, 0, "Port number to bind. E.g. 8420")
	return cmd
}
