// Package storage archives raw boot information and header dumps in pebble,
// keyed by KSUID.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"

	"github.com/ssargent/mb2/pkg/codec"
)

var ErrNotFound = errors.New("dump not found")

var (
	dataPrefix = []byte("dump/")
	metaPrefix = []byte("meta/")
)

// Dump describes a stored dump. The bytes themselves are returned by Read.
type Dump struct {
	ID      ksuid.KSUID `json:"id"`
	Kind    string      `json:"kind"`
	Name    string      `json:"name,omitempty"`
	Size    int         `json:"size"`
	Created time.Time   `json:"created"`
}

// DumpStore is the archive used by the API.
type DumpStore interface {
	Create(kind, name string, data []byte) (Dump, error)
	Read(id ksuid.KSUID) (Dump, []byte, error)
	Delete(id ksuid.KSUID) error
	List() ([]Dump, error)
	Close() error
}

type DefaultStorage struct {
	db  *pebble.DB
	log *logrus.Logger
}

// NewDefaultStorage opens or creates the archive at path.
func NewDefaultStorage(path string, log *logrus.Logger) (*DefaultStorage, error) {
	return open(path, &pebble.Options{}, log)
}

func open(path string, opts *pebble.Options, log *logrus.Logger) (*DefaultStorage, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open dump archive: %w", err)
	}
	log.WithField("path", path).Debug("dump archive opened")
	return &DefaultStorage{db: db, log: log}, nil
}

func key(prefix []byte, id ksuid.KSUID) []byte {
	return append(append([]byte{}, prefix...), id.Bytes()...)
}

// Create stores data with its metadata in one batch.
func (s *DefaultStorage) Create(kind, name string, data []byte) (Dump, error) {
	d := Dump{
		ID:      ksuid.New(),
		Kind:    kind,
		Name:    name,
		Size:    len(data),
		Created: time.Now().UTC(),
	}
	meta, err := json.Marshal(d)
	if err != nil {
		return Dump{}, err
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(key(dataPrefix, d.ID), data, nil); err != nil {
		return Dump{}, err
	}
	if err := b.Set(key(metaPrefix, d.ID), meta, nil); err != nil {
		return Dump{}, err
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return Dump{}, fmt.Errorf("failed to store dump: %w", err)
	}

	s.log.WithFields(logrus.Fields{"id": d.ID.String(), "kind": kind, "size": d.Size}).Debug("dump stored")
	return d, nil
}

// Read returns the metadata and bytes of a dump. The bytes are copied into an
// 8-byte aligned buffer so they can be parsed directly.
func (s *DefaultStorage) Read(id ksuid.KSUID) (Dump, []byte, error) {
	d, err := s.meta(id)
	if err != nil {
		return Dump{}, nil, err
	}
	data, closer, err := s.db.Get(key(dataPrefix, id))
	if errors.Is(err, pebble.ErrNotFound) {
		return Dump{}, nil, ErrNotFound
	}
	if err != nil {
		return Dump{}, nil, err
	}
	defer closer.Close()

	out := codec.AlignedBytes(len(data))
	copy(out, data)
	return d, out, nil
}

func (s *DefaultStorage) meta(id ksuid.KSUID) (Dump, error) {
	raw, closer, err := s.db.Get(key(metaPrefix, id))
	if errors.Is(err, pebble.ErrNotFound) {
		return Dump{}, ErrNotFound
	}
	if err != nil {
		return Dump{}, err
	}
	defer closer.Close()

	var d Dump
	if err := json.Unmarshal(raw, &d); err != nil {
		return Dump{}, fmt.Errorf("corrupt metadata for %s: %w", id, err)
	}
	return d, nil
}

func (s *DefaultStorage) Delete(id ksuid.KSUID) error {
	if _, err := s.meta(id); err != nil {
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(key(dataPrefix, id), nil); err != nil {
		return err
	}
	if err := b.Delete(key(metaPrefix, id), nil); err != nil {
		return err
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("failed to delete dump: %w", err)
	}
	s.log.WithField("id", id.String()).Debug("dump deleted")
	return nil
}

// List returns the metadata of every dump, oldest first.
func (s *DefaultStorage) List() ([]Dump, error) {
	upper := append(append([]byte{}, metaPrefix[:len(metaPrefix)-1]...), metaPrefix[len(metaPrefix)-1]+1)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: metaPrefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	out := []Dump{}
	for it.First(); it.Valid(); it.Next() {
		var d Dump
		if err := json.Unmarshal(it.Value(), &d); err != nil {
			s.log.WithError(err).WithField("key", fmt.Sprintf("%x", it.Key())).Warn("skipping corrupt dump metadata")
			continue
		}
		out = append(out, d)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	// KSUIDs only order by the second.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out, nil
}

func (s *DefaultStorage) Close() error {
	return s.db.Close()
}
