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
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"sync"

	"github.com/google/gopacket"
	"go.etcd.io/bbolt"
	"sigs.k8s.io/yaml"

	"github.com/neurosim-lab/go-mrd/pkg/layers"
	"github.com/neurosim-lab/go-mrd/pkg/log"
)

const (
	HeaderBucket       = "header"
	AcquisitionsBucket = "acquisitions"
	WaveformsBucket    = "waveforms"
	ImagesBucket       = "images"

	HeaderKey = "xml"

	SmapsImageName   = "smaps"
	CoilCovImageName = "coil_cov"
)

// Container is a scan container: one header blob, an ordered acquisition
// stream, waveform sideband records and named auxiliary images, all in a
// single bbolt database file. The file lock makes the handle exclusive.
type Container struct {
	Path   string
	DB     *bbolt.DB
	Config *HeaderConfig

	catalog     map[int]WaveformInfo
	catalogOnce sync.Once
	catalogErr  error

	closeOnce sync.Once
}

// uint64ToBytes produces big-endian keys so bbolt iterates acquisitions in
// scan counter order
func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Open opens an existing container read-only. A missing file or a file
// without the container buckets is ErrContainerNotFound. The header is read
// and parsed once.
func Open(path string) (*Container, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, ErrContainerNotFound{Path: path, Err: err}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true})
	if err != nil {
		return nil, ErrContainerNotFound{Path: path, Err: err}
	}

	var raw []byte
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(HeaderBucket))
		if b == nil {
			return errors.New("no header bucket")
		}
		v := b.Get([]byte(HeaderKey))
		if v == nil {
			return errors.New("no header blob")
		}
		raw = append(raw, v...)
		return nil
	})
	if err != nil {
		db.Close()
		return nil, ErrContainerNotFound{Path: path, Err: err}
	}

	cfg, err := ParseHeader(raw)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Container{
		Path:   path,
		DB:     db,
		Config: cfg,
	}, nil
}

// Create creates a new container at path, replacing any pre-existing file.
// Failure to remove or create the file is ErrContainerWrite.
func Create(path string, cfg *HeaderConfig) (*Container, error) {
	if _, err := os.Stat(path); err == nil {
		log.Warning("Existing container %s will be overwritten", path)
		if err := os.Remove(path); err != nil {
			return nil, ErrContainerWrite{Path: path, Err: err}
		}
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, ErrContainerWrite{Path: path, Err: err}
	}

	raw, err := SerializeHeader(cfg)
	if err != nil {
		db.Close()
		return nil, ErrContainerWrite{Path: path, Err: err}
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{HeaderBucket, AcquisitionsBucket, WaveformsBucket, ImagesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return tx.Bucket([]byte(HeaderBucket)).Put([]byte(HeaderKey), raw)
	})
	if err != nil {
		db.Close()
		return nil, ErrContainerWrite{Path: path, Err: err}
	}

	return &Container{
		Path:   path,
		DB:     db,
		Config: cfg,
	}, nil
}

// Close flushes and closes the underlying database. Safe to call more than
// once and from deferred cleanup paths.
func (c *Container) Close() {
	c.closeOnce.Do(func() {
		if err := c.DB.Close(); err != nil {
			log.Error("Error while closing container %s: %v", c.Path, err)
		}
	})
}

// RawHeader returns the serialized header blob
func (c *Container) RawHeader() ([]byte, error) {
	var raw []byte
	err := c.DB.View(func(tx *bbolt.Tx) error {
		raw = append(raw, tx.Bucket([]byte(HeaderBucket)).Get([]byte(HeaderKey))...)
		return nil
	})
	return raw, err
}

// AppendAcquisitions serializes and appends a batch of acquisition records
// in one transaction, keyed by scan counter
func (c *Container) AppendAcquisitions(acqs []*layers.AcquisitionLayer) error {
	return c.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(AcquisitionsBucket))
		for _, acq := range acqs {
			buf := gopacket.NewSerializeBuffer()
			opts := gopacket.SerializeOptions{}
			if err := gopacket.SerializeLayers(buf, opts, acq); err != nil {
				return err
			}
			if err := b.Put(uint64ToBytes(acq.ScanCounter), buf.Bytes()); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendAcquisition serializes and appends one acquisition record
func (c *Container) AppendAcquisition(acq *layers.AcquisitionLayer) error {
	return c.AppendAcquisitions([]*layers.AcquisitionLayer{acq})
}

// NumAcquisitions returns the number of records in the stream
func (c *Container) NumAcquisitions() int {
	var n int
	c.DB.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(AcquisitionsBucket)).Stats().KeyN
		return nil
	})
	return n
}

// ReadAcquisition reads and decodes the record at the given position in the
// stream
func (c *Container) ReadAcquisition(i int) (*layers.AcquisitionLayer, error) {
	var value []byte
	err := c.DB.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(AcquisitionsBucket)).Get(uint64ToBytes(uint64(i)))
		if v == nil {
			return ErrTruncatedStream{ScanCounter: uint64(i)}
		}
		value = append(value, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	acq := &layers.AcquisitionLayer{}
	if err := acq.DecodeFromBytes(value, nil); err != nil {
		return nil, err
	}
	return acq, nil
}

// RecordScanner is a one-pass forward scanner over the acquisition stream.
// It is not restartable, reopen the container to iterate again.
type RecordScanner struct {
	container *Container
	next      int
	total     int
}

// Acquisitions returns a scanner positioned before the first record
func (c *Container) Acquisitions() *RecordScanner {
	return &RecordScanner{
		container: c,
		total:     c.NumAcquisitions(),
	}
}

// Next returns the next record of the stream, io.EOF after the last one
func (s *RecordScanner) Next() (*layers.AcquisitionLayer, error) {
	if s.next >= s.total {
		return nil, io.EOF
	}
	acq, err := s.container.ReadAcquisition(s.next)
	if err != nil {
		return nil, err
	}
	s.next++
	return acq, nil
}

// AppendWaveform appends one waveform record with the next sequential key
func (c *Container) AppendWaveform(w *layers.WaveformLayer) error {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{}
	if err := gopacket.SerializeLayers(buf, opts, w); err != nil {
		return err
	}
	return c.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(WaveformsBucket))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(uint64ToBytes(seq-1), buf.Bytes())
	})
}

// NumWaveforms returns the number of sideband records
func (c *Container) NumWaveforms() int {
	var n int
	c.DB.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(WaveformsBucket)).Stats().KeyN
		return nil
	})
	return n
}

// ReadWaveform reads and decodes one waveform record on demand
func (c *Container) ReadWaveform(i int) (*layers.WaveformLayer, error) {
	var value []byte
	err := c.DB.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(WaveformsBucket)).Get(uint64ToBytes(uint64(i)))
		if v == nil {
			return ErrWaveformNotFound{Index: i, What: "index out of range"}
		}
		value = append(value, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	w := &layers.WaveformLayer{}
	if err := w.DecodeFromBytes(value, nil); err != nil {
		return nil, err
	}
	return w, nil
}

// ImageMeta describes a named auxiliary image
type ImageMeta struct {
	Shape   []int  `json:"shape"`
	Complex bool   `json:"complex,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// Image is a named auxiliary image, e.g. coil sensitivity maps
type Image struct {
	Name string
	Meta ImageMeta
	Data []float32
}

func imageMetaKey(name string) []byte {
	return []byte(name + "/meta")
}

func imageDataKey(name string) []byte {
	return []byte(name + "/data")
}

/// WriteImage stores a named image: yaml metadata plus raw little-endian
// float32 payload
func (c *Container) WriteImage(img *Image) error {
	metaBytes, err := yaml.Marshal(&img.Meta)
	if err != nil {
		return err
	}
	dataBytes := make([]byte, len(img.Data)*4)
	for i, v := range img.Data {
		binary.LittleEndian.PutUint32(dataBytes[i*4:i*4+4], math.Float32bits(v))
	}
	return c.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ImagesBucket))
		if err := b.Put(imageMetaKey(img.Name), metaBytes); err != nil {
			return err
		}
		return b.Put(imageDataKey(img.Name), dataBytes)
	})
}

// ReadImage loads a named image. An absent name is (nil, nil), not an
// error.
func (c *Container) ReadImage(name string) (*Image, error) {
	var metaBytes, dataBytes []byte
	err := c.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ImagesBucket))
		if v := b.Get(imageMetaKey(name)); v != nil {
			metaBytes = append(metaBytes, v...)
		}
		if v := b.Get(imageDataKey(name)); v != nil {
			dataBytes = append(dataBytes, v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if metaBytes == nil {
		log.Warning("No %s found in container %s", name, c.Path)
		return nil, nil
	}

	img := &Image{Name: name}
	if err := yaml.Unmarshal(metaBytes, &img.Meta); err != nil {
		return nil, err
	}
	img.Data = make([]float32, len(dataBytes)/4)
	for i := range img.Data {
		img.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(dataBytes[i*4 : i*4+4]))
	}
	return img, nil
}

// ImageNames lists the stored image names
func (c *Container) ImageNames() []string {
	var names []string
	c.DB.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(ImagesBucket)).ForEach(func(k, v []byte) error {
			key := string(k)
			if len(key) > 5 && key[len(key)-5:] == "/meta" {
				names = append(names, key[:len(key)-5])
			}
			return nil
		})
	})
	return names
}

// Process-exit cleanup registry. Containers registered here are closed by
// CloseAll, which the CLI wires to signal handling and normal exit. Close
// itself is idempotent, so double cleanup is harmless.

var (
	exitMu         sync.Mutex
	exitContainers []*Container
)

// CloseOnExit registers a container for best-effort cleanup at process exit
func CloseOnExit(c *Container) {
	exitMu.Lock()
	defer exitMu.Unlock()
	exitContainers = append(exitContainers, c)
}

// CloseAll closes every registered container
func CloseAll() {
	exitMu.Lock()
	defer exitMu.Unlock()
	for _, c := range exitContainers {
		c.Close()
	}
	exitContainers = nil
}
