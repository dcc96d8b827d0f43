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

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/neurosim-lab/go-mrd/cmd/completion"
	configcmd "github.com/neurosim-lab/go-mrd/cmd/config"
	"github.com/neurosim-lab/go-mrd/cmd/emit"
	"github.com/neurosim-lab/go-mrd/cmd/frames"
	"github.com/neurosim-lab/go-mrd/cmd/info"
	"github.com/neurosim-lab/go-mrd/cmd/remote"
	"github.com/neurosim-lab/go-mrd/cmd/serve"
	"github.com/neurosim-lab/go-mrd/cmd/waveform"
	pkgconfig "github.com/neurosim-lab/go-mrd/pkg/config"
	"github.com/neurosim-lab/go-mrd/pkg/log"
)

const (
	LogLevelOptionName = "log-level"
)

func NewRootCommand(out io.Writer) *cobra.Command {
	var logLevel string
	cfg := pkgconfig.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "go-mrd",
		Short: "Tool to simulate, persist and inspect MRI acquisition streams",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			log.Init(cmd.ErrOrStderr(), cfg.LogLevel)
		},
	}
	cmd.SetOut(out)
	cmd.AddCommand(emit.NewCommand())
	cmd.AddCommand(info.NewCommand())
	cmd.AddCommand(frames.NewCommand())
	cmd.AddCommand(waveform.NewCommand())
	cmd.AddCommand(serve.NewCommand())
	cmd.AddCommand(remote.NewCommand())
	cmd.AddCommand(configcmd.NewCommand())
	cmd.AddCommand(completion.NewCommand())
	cmd.PersistentFlags().StringVar(&logLevel, LogLevelOptionName, "", fmt.Sprintf("Log level. %s", log.HelpLevels))
	return cmd
}
