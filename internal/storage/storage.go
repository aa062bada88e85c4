package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hailam/reversi/internal/board"
	"github.com/hailam/reversi/internal/engine"
)

// Storage keys
const (
	keySettings = "settings"
	prefixMeta  = "snap/meta/"
	prefixData  = "snap/data/"
)

// ErrSnapshotNotFound is returned for an unknown snapshot id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Settings stores the console configuration between sessions.
type Settings struct {
	HashBits     int       `json:"hash_bits"`
	Ways         int       `json:"ways"`
	LockBits     int       `json:"lock_bits"`
	Kernel       string    `json:"kernel"`
	LastSnapshot string    `json:"last_snapshot"`
	LastUsed     time.Time `json:"last_used"`
}

// DefaultSettings returns the default table shape with automatic kernel
// selection.
func DefaultSettings() *Settings {
	cfg := engine.DefaultConfig()
	return &Settings{
		HashBits: cfg.HashBits,
		Ways:     cfg.Ways,
		LockBits: cfg.LockBits,
		Kernel:   board.KernelAuto,
		LastUsed: time.Now(),
	}
}

// TableConfig returns the table configuration described by the settings.
func (s *Settings) TableConfig() engine.Config {
	return engine.Config{HashBits: s.HashBits, Ways: s.Ways, LockBits: s.LockBits}
}

// SnapshotInfo describes a stored transposition table snapshot.
type SnapshotInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Created    time.Time `json:"created"`
	Entries    uint64    `json:"entries"`
	Ways       int       `json:"ways"`
	BucketBits int       `json:"bucket_bits"`
	Date       uint8     `json:"date"`
	RawSize    int64     `json:"raw_size"`
	StoredSize int       `json:"stored_size"`
}

// Storage wraps BadgerDB for persistent storage
type Storage struct {
	db      *badger.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// badgerLogger routes badger's messages through zerolog.
type badgerLogger struct {
	zerolog.Logger
}

func trimf(format string, args []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Errorf(f string, a ...interface{})   { l.Error().Msg(trimf(f, a)) }
func (l badgerLogger) Warningf(f string, a ...interface{}) { l.Warn().Msg(trimf(f, a)) }
func (l badgerLogger) Infof(f string, a ...interface{})    { l.Debug().Msg(trimf(f, a)) }
func (l badgerLogger) Debugf(f string, a ...interface{})   { l.Trace().Msg(trimf(f, a)) }

// Open opens the database in dir, or in the default database directory when
// dir is empty.
func Open(dir string) (*Storage, error) {
	if dir == "" {
		var err error
		if dir, err = GetDatabaseDir(); err != nil {
			return nil, fmt.Errorf("database dir: %w", err)
		}
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = badgerLogger{log.With().Str("component", "badger").Logger()}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dir, err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	log.Debug().Str("dir", dir).Msg("storage-opened")
	return &Storage{db: db, encoder: encoder, decoder: decoder}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	if s.encoder != nil {
		s.encoder.Close()
	}
	if s.decoder != nil {
		s.decoder.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveSettings saves the console settings
func (s *Storage) SaveSettings(settings *Settings) error {
	settings.LastUsed = time.Now()

	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keySettings), data)
	})
}

// LoadSettings loads the console settings, returns defaults if not found
func (s *Storage) LoadSettings() (*Settings, error) {
	settings := DefaultSettings()

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keySettings))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil // Use defaults
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, settings)
		})
	})

	return settings, err
}

// SaveTable stores a compressed snapshot of t under a new id.
func (s *Storage) SaveTable(name string, t *engine.Table) (SnapshotInfo, error) {
	var raw bytes.Buffer
	n, err := t.WriteTo(&raw)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("encode table: %w", err)
	}

	hdr, err := engine.ReadSnapshotHeader(bytes.NewReader(raw.Bytes()))
	if err != nil {
		return SnapshotInfo{}, err
	}
	data := s.encoder.EncodeAll(raw.Bytes(), nil)

	info := SnapshotInfo{
		ID:         uuid.NewString(),
		Name:       name,
		Created:    time.Now(),
		Entries:    hdr.Count,
		Ways:       hdr.Ways,
		BucketBits: hdr.BucketBits,
		Date:       hdr.Date,
		RawSize:    n,
		StoredSize: len(data),
	}
	meta, err := json.Marshal(info)
	if err != nil {
		return SnapshotInfo{}, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(prefixData+info.ID), data); err != nil {
			return err
		}
		return txn.Set([]byte(prefixMeta+info.ID), meta)
	})
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("store snapshot: %w", err)
	}

	log.Info().
		Str("id", info.ID).
		Str("name", name).
		Uint64("entries", info.Entries).
		Int64("raw", info.RawSize).
		Int("stored", info.StoredSize).
		Msg("snapshot-saved")
	return info, nil
}

// LoadTable reads snapshot id into t. Entries already in t may be evicted.
func (s *Storage) LoadTable(id string, t *engine.Table) (SnapshotInfo, error) {
	var info SnapshotInfo
	var raw []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixMeta + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &info)
		}); err != nil {
			return err
		}

		item, err = txn.Get([]byte(prefixData + id))
		if err != nil {
			return fmt.Errorf("snapshot %s data: %w", id, err)
		}
		return item.Value(func(val []byte) error {
			var derr error
			raw, derr = s.decoder.DecodeAll(val, nil)
			return derr
		})
	})
	if err != nil {
		return info, err
	}

	if _, err := t.ReadFrom(bytes.NewReader(raw)); err != nil {
		return info, fmt.Errorf("load snapshot %s: %w", id, err)
	}

	log.Info().
		Str("id", id).
		Str("name", info.Name).
		Uint64("entries", info.Entries).
		Msg("snapshot-loaded")
	return info, nil
}

// ListSnapshots returns the stored snapshots, oldest first.
func (s *Storage) ListSnapshots() ([]SnapshotInfo, error) {
	var list []SnapshotInfo

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixMeta)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var info SnapshotInfo
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &info)
			}); err != nil {
				return err
			}
			list = append(list, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Created.Before(list[j].Created)
	})
	return list, nil
}

// DeleteSnapshot removes snapshot id.
func (s *Storage) DeleteSnapshot(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(prefixMeta + id)); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		} else if err != nil {
			return err
		}
		if err := txn.Delete([]byte(prefixMeta + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(prefixData + id))
	})
}

// ExportTable writes a zstd-compressed snapshot of t to path.
func ExportTable(path string, t *engine.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	n, err := t.WriteTo(zw)
	if err != nil {
		zw.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}

	log.Info().Str("path", path).Int64("bytes", n).Msg("snapshot-exported")
	return nil
}

// ImportTable reads a snapshot written by ExportTable into t.
func ImportTable(path string, t *engine.Table) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("create zstd decoder: %w", err)
	}
	defer zr.Close()

	n, err := t.ReadFrom(zr)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	log.Info().Str("path", path).Int64("bytes", n).Msg("snapshot-imported")
	return nil
}
