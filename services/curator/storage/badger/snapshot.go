// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/Curator/services/curator/graph"
)

// Key layout.
const (
	keyPrefix   = "curator/graphdb/"
	keyLatest   = keyPrefix + "latest"
	keyEpochs   = keyPrefix + "epoch/"
	suffixData  = "/data"
	suffixMeta  = "/meta"
	defaultKeep = 3
)

// Sentinel errors for snapshot operations.
var (
	// ErrSnapshotNotFound is returned when no snapshot exists for the
	// requested epoch, or none has been saved yet.
	ErrSnapshotNotFound = errors.New("graph snapshot not found")

	// ErrChecksumMismatch is returned when stored snapshot data does not
	// match its recorded checksum.
	ErrChecksumMismatch = errors.New("graph snapshot checksum mismatch")

	// ErrInvalidEpoch is returned for an epoch id that is not a UUID.
	ErrInvalidEpoch = errors.New("invalid epoch id")
)

var (
	snapshotOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curator_graph_snapshot_operations_total",
		Help: "Graph snapshot operations by kind and outcome",
	}, []string{"op", "outcome"})

	snapshotBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "curator_graph_snapshot_bytes",
		Help:    "Compressed size of saved graph snapshots",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})
)

// SnapshotMeta describes one saved snapshot.
type SnapshotMeta struct {
	EpochID         string    `json:"epoch_id"`
	BuiltAt         time.Time `json:"built_at"`
	SavedAt         time.Time `json:"saved_at"`
	Entries         int       `json:"entries"`
	CompressedBytes int       `json:"compressed_bytes"`
	Checksum        string    `json:"checksum"`
}

// SnapshotStore persists graph database snapshots.
//
// Snapshots are JSON, gzip-compressed, and stored under their epoch id with
// a SHA-256 checksum. A "latest" key points at the most recent save. Only
// the newest Keep snapshots are retained.
//
// Thread Safety:
//
//	Safe for concurrent use.
type SnapshotStore struct {
	db     *DB
	keep   int
	logger *slog.Logger
}

// SnapshotOption configures a SnapshotStore.
type SnapshotOption func(*SnapshotStore)

// WithKeep sets how many snapshots are retained. If n <= 0, uses default (3).
func WithKeep(n int) SnapshotOption {
	return func(s *SnapshotStore) {
		if n > 0 {
			s.keep = n
		}
	}
}

// WithSnapshotLogger sets the logger.
func WithSnapshotLogger(l *slog.Logger) SnapshotOption {
	return func(s *SnapshotStore) {
		s.logger = l
	}
}

// NewSnapshotStore creates a store over db.
func NewSnapshotStore(db *DB, opts ...SnapshotOption) (*SnapshotStore, error) {
	if db == nil {
		return nil, errors.New("badger: db must not be nil")
	}
	s := &SnapshotStore{db: db, keep: defaultKeep, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func dataKey(epoch string) []byte { return []byte(keyEpochs + epoch + suffixData) }
func metaKey(epoch string) []byte { return []byte(keyEpochs + epoch + suffixMeta) }

// Save stores snap and makes it the latest snapshot.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	snap - Snapshot of a built database. EpochID must be a UUID.
//
// Outputs:
//
//	*SnapshotMeta - Metadata of the stored snapshot.
//	error - ErrInvalidEpoch, or an encoding or storage failure.
func (s *SnapshotStore) Save(ctx context.Context, snap *graph.Snapshot) (*SnapshotMeta, error) {
	if _, err := uuid.Parse(snap.EpochID); err != nil {
		snapshotOps.WithLabelValues("save", "error").Inc()
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidEpoch, snap.EpochID, err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		snapshotOps.WithLabelValues("save", "error").Inc()
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		snapshotOps.WithLabelValues("save", "error").Inc()
		return nil, fmt.Errorf("compressing snapshot: %w", err)
	}
	data := buf.Bytes()
	sum := sha256.Sum256(data)

	meta := &SnapshotMeta{
		EpochID:         snap.EpochID,
		BuiltAt:         snap.BuiltAt,
		SavedAt:         time.Now().UTC(),
		Entries:         len(snap.Entries),
		CompressedBytes: len(data),
		Checksum:        hex.EncodeToString(sum[:]),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot meta: %w", err)
	}

	err = s.db.Update(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(dataKey(meta.EpochID), data); err != nil {
			return err
		}
		if err := txn.Set(metaKey(meta.EpochID), metaJSON); err != nil {
			return err
		}
		return txn.Set([]byte(keyLatest), []byte(meta.EpochID))
	})
	if err != nil {
		snapshotOps.WithLabelValues("save", "error").Inc()
		return nil, fmt.Errorf("storing snapshot %s: %w", meta.EpochID, err)
	}
	snapshotOps.WithLabelValues("save", "ok").Inc()
	snapshotBytes.Observe(float64(len(data)))

	s.logger.Info("graph snapshot saved",
		slog.String("epoch_id", meta.EpochID),
		slog.Int("entries", meta.Entries),
		slog.Int("compressed_bytes", meta.CompressedBytes),
	)

	if err := s.prune(ctx); err != nil {
		s.logger.Warn("pruning graph snapshots failed", slog.String("error", err.Error()))
	}
	return meta, nil
}

// Latest loads the most recently saved snapshot.
func (s *SnapshotStore) Latest(ctx context.Context) (*graph.Snapshot, *SnapshotMeta, error) {
	var epoch string
	err := s.db.View(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyLatest))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			epoch = string(v)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading latest snapshot pointer: %w", err)
	}
	return s.Load(ctx, epoch)
}

// Load reads and verifies the snapshot of one epoch.
func (s *SnapshotStore) Load(ctx context.Context, epoch string) (*graph.Snapshot, *SnapshotMeta, error) {
	if _, err := uuid.Parse(epoch); err != nil {
		return nil, nil, fmt.Errorf("%w %q: %w", ErrInvalidEpoch, epoch, err)
	}

	var data, metaJSON []byte
	err := s.db.View(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(epoch))
		if err != nil {
			return err
		}
		if metaJSON, err = item.ValueCopy(nil); err != nil {
			return err
		}
		item, err = txn.Get(dataKey(epoch))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		snapshotOps.WithLabelValues("load", "missing").Inc()
		return nil, nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, epoch)
	}
	if err != nil {
		snapshotOps.WithLabelValues("load", "error").Inc()
		return nil, nil, fmt.Errorf("reading snapshot %s: %w", epoch, err)
	}

	var meta SnapshotMeta
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("decoding snapshot meta %s: %w", epoch, err)
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != meta.Checksum {
		snapshotOps.WithLabelValues("load", "corrupt").Inc()
		return nil, nil, fmt.Errorf("%w: %s", ErrChecksumMismatch, epoch)
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing snapshot %s: %w", epoch, err)
	}
	defer zr.Close()
	var snap graph.Snapshot
	if err := json.NewDecoder(io.LimitReader(zr, 1<<32)).Decode(&snap); err != nil {
		snapshotOps.WithLabelValues("load", "error").Inc()
		return nil, nil, fmt.Errorf("decoding snapshot %s: %w", epoch, err)
	}
	snapshotOps.WithLabelValues("load", "ok").Inc()
	return &snap, &meta, nil
}

// List returns the metadata of every stored snapshot, newest first.
func (s *SnapshotStore) List(ctx context.Context) ([]SnapshotMeta, error) {
	metas := make([]SnapshotMeta, 0)
	err := s.db.View(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyEpochs)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if !bytes.HasSuffix(item.Key(), []byte(suffixMeta)) {
				continue
			}
			var m SnapshotMeta
			err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &m)
			})
			if err != nil {
				return fmt.Errorf("decoding %s: %w", item.Key(), err)
			}
			metas = append(metas, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].SavedAt.After(metas[j].SavedAt) })
	return metas, nil
}

// Delete removes the snapshot of one epoch. Deleting the latest snapshot
// clears the latest pointer.
func (s *SnapshotStore) Delete(ctx context.Context, epoch string) error {
	return s.db.Update(ctx, func(txn *badger.Txn) error {
		if err := txn.Delete(dataKey(epoch)); err != nil {
			return err
		}
		if err := txn.Delete(metaKey(epoch)); err != nil {
			return err
		}
		item, err := txn.Get([]byte(keyLatest))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		latest, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(latest) == epoch {
			return txn.Delete([]byte(keyLatest))
		}
		return nil
	})
}

// prune deletes all but the newest keep snapshots.
func (s *SnapshotStore) prune(ctx context.Context) error {
	metas, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, m := range metas[min(s.keep, len(metas)):] {
		if err := s.Delete(ctx, m.EpochID); err != nil {
			return fmt.Errorf("deleting snapshot %s: %w", m.EpochID, err)
		}
		s.logger.Debug("graph snapshot pruned", slog.String("epoch_id", m.EpochID))
	}
	return nil
}
