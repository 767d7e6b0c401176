package imagestore

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/wippyai/rotable"
	"github.com/wippyai/rotable/errors"
	"github.com/wippyai/rotable/layout"
)

var bucketImages = []byte("images")

// Kind says where an image is mapped.
type Kind string

const (
	KindROM    Kind = "rom"
	KindModule Kind = "module"
)

// Record is one stored image.
type Record struct {
	Name   string `msgpack:"name"`
	Kind   Kind   `msgpack:"kind"`
	Origin uint32 `msgpack:"origin"`
	Root   uint32 `msgpack:"root"`
	Data   []byte `msgpack:"data"`

	// Lookup limits, meaningful on the rom record.
	MaxNameLen int  `msgpack:"max_name_len,omitempty"`
	Metatables bool `msgpack:"metatables,omitempty"`
}

// NewRecord captures a compiled image.
func NewRecord(name string, kind Kind, img layout.Image) Record {
	return Record{
		Name:   name,
		Kind:   kind,
		Origin: uint32(img.Origin),
		Root:   uint32(img.Root),
		Data:   img.Data,
	}
}

// Image returns the compiled image held by the record.
func (r Record) Image() layout.Image {
	return layout.Image{
		Data:   r.Data,
		Origin: rotable.Address(r.Origin),
		Root:   rotable.Address(r.Root),
	}
}

// Options tunes the underlying bbolt file.
type Options struct {
	// Timeout bounds waiting for the file lock. 0 means one second.
	Timeout time.Duration

	// NoSync skips fsync after commits. Useful in tests.
	NoSync bool
}

// Store is a bbolt file of image records kept in insertion order.
type Store struct {
	bdb *bbolt.DB
}

// Open opens or creates the store at path.
func Open(path string, opt *Options) (*Store, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = time.Second
	if opt != nil {
		if opt.Timeout > 0 {
			bopt.Timeout = opt.Timeout
		}
		bopt.NoSync = opt.NoSync
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseStore, errors.KindInvalidInput, err, fmt.Sprintf("open %s", path))
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketImages)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, errors.Wrap(errors.PhaseStore, errors.KindInvalidData, err, "create images bucket")
	}
	return &Store{bdb: bdb}, nil
}

// Put appends a record.
func (s *Store) Put(rec Record) error {
	if rec.Name == "" {
		return errors.InvalidInput(errors.PhaseStore, "record name is empty")
	}
	if rec.Kind != KindROM && rec.Kind != KindModule {
		return errors.InvalidInput(errors.PhaseStore, fmt.Sprintf("unknown record kind %q", rec.Kind))
	}
	raw, err := msgpack.Marshal(&rec)
	if err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindInvalidData, err, fmt.Sprintf("encode record %q", rec.Name))
	}
	err = s.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketImages)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), raw)
	})
	if err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindInvalidData, err, fmt.Sprintf("put record %q", rec.Name))
	}
	return nil
}

// All returns every record in insertion order.
func (s *Store) All() ([]Record, error) {
	var out []Record
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketImages).ForEach(func(k, v []byte) error {
			var rec Record
			if err := msgpack.Unmarshal(v, &rec); err != nil {
				return errors.Wrap(errors.PhaseStore, errors.KindInvalidData, err,
					fmt.Sprintf("decode record %d", binary.BigEndian.Uint64(k)))
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reset removes every record and restarts the sequence.
func (s *Store) Reset() error {
	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketImages); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketImages)
		return err
	})
	if err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindInvalidData, err, "reset images bucket")
	}
	return nil
}

// Close releases the file.
func (s *Store) Close() error {
	return s.bdb.Close()
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}
