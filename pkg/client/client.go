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

package client

import (
	"errors"
	"fmt"

	"github.com/imroc/req"

	"github.com/neurosim-lab/go-mrd/pkg/config"
)

// ApiClient queries a running inspection API server
type ApiClient struct {
	*config.Config
	ApiPrefix string
}

func NewApiClient(cfg *config.Config) *ApiClient {
	return &ApiClient{
		Config:    cfg,
		ApiPrefix: fmt.Sprintf("http://%s:%d/api", cfg.Api.Host, cfg.Api.Port),
	}
}

func (c *ApiClient) headerUrl() string {
	return fmt.Sprintf("%s/header", c.ApiPrefix)
}

func (c *ApiClient) framesUrl() string {
	return fmt.Sprintf("%s/frames", c.ApiPrefix)
}

func (c *ApiClient) waveformsUrl() string {
	return fmt.Sprintf("%s/waveforms", c.ApiPrefix)
}

func (c *ApiClient) imageUrl(name string) string {
	return fmt.Sprintf("%s/images/%s", c.ApiPrefix, name)
}

func (c *ApiClient) get(url string) (string, error) {
	r, err := req.Get(url)
	if err != nil {
		return "", err
	}
	resp := r.Response()
	if resp.StatusCode != 200 {
		return "", errors.New(fmt.Sprintf("Request failed: %s: %s", url, resp.Status))
	}
	return r.String(), nil
}

// Header fetches the parsed container header
func (c *ApiClient) Header() (string, error) {
	return c.get(c.headerUrl())
}

// Frames fetches the per-frame summaries
func (c *ApiClient) Frames() (string, error) {
	return c.get(c.framesUrl())
}

// Waveforms fetches the sideband summaries
func (c *ApiClient) Waveforms() (string, error) {
	return c.get(c.waveformsUrl())
}

// Image fetches the metadata of a named image
func (c *ApiClient) Image(name string) (string, error) {
	return c.get(c.imageUrl(name))
}
