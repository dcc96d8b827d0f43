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
	"fmt"
)

// ErrShortRecord returned when a serialized record is shorter than its
// header or declared payload requires
type ErrShortRecord struct {
	What string
	Want int
	Got  int
}

func (e ErrShortRecord) Error() string {
	return fmt.Sprintf("%s record too short: want at least %d bytes, got %d", e.What, e.Want, e.Got)
}
