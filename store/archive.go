package store

import (
	"errors"
	"fmt"
	"time"

	"comfynodes/logger"
	"comfynodes/settings"

	"git.mills.io/prologic/bitcask"
)

// Archive persists store values across host restarts. Values are JSON
// encoded and gzipped, and keys are hashed so any string can be used.
type Archive struct {
	db       *bitcask.Bitcask
	maxValue int64
}

func OpenArchive(config settings.StoreConfig) (*Archive, error) {
	db, err := bitcask.Open(config.ArchivePath, bitcask.WithMaxValueSize(uint64(config.MaxValueSize)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", config.ArchivePath, err)
	}
	return &Archive{db: db, maxValue: int64(config.MaxValueSize)}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Merge compacts the archive to reclaim space from overwritten values.
func (a *Archive) Merge() error {
	start := time.Now()
	logger.Info("Merging archive to reclaim space...")
	if err := a.db.Merge(); err != nil {
		logger.Error("Error merging archive", "error", err)
		return err
	}
	logger.Info("Archive merge complete", "took", logger.Elapsed(start))
	return nil
}

func (a *Archive) Put(key string, value any) error {
	return a.PutWithTTL(key, value, 0)
}

// PutWithTTL stores value under key. A ttl of zero never expires.
func (a *Archive) PutWithTTL(key string, value any, ttl time.Duration) error {
	data, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("%q: %w", key, err)
	}
	if ttl > 0 {
		return a.db.PutWithTTL(archiveKey(key), data, ttl)
	}
	return a.db.Put(archiveKey(key), data)
}

func (a *Archive) Get(key string) (any, error) {
	data, err := a.db.Get(archiveKey(key))
	if errors.Is(err, bitcask.ErrKeyNotFound) || errors.Is(err, bitcask.ErrKeyExpired) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	value, err := decodeValue(data, a.maxValue)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", key, err)
	}
	return value, nil
}

func (a *Archive) Has(key string) bool {
	return a.db.Has(archiveKey(key))
}

func (a *Archive) Delete(key string) error {
	return a.db.Delete(archiveKey(key))
}

func (a *Archive) Len() int {
	return a.db.Len()
}

// Persist copies the value under key from s into the archive.
func (a *Archive) Persist(s *Store, key string) error {
	value, ok := s.Get(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return a.Put(key, value)
}

// Restore loads key from the archive into s and returns the value.
func (a *Archive) Restore(s *Store, key string) (any, error) {
	value, err := a.Get(key)
	if err != nil {
		return nil, err
	}
	s.Set(key, value)
	return value, nil
}
