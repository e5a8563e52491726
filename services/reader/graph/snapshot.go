// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

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
	"golang.org/x/mod/semver"
)

// BadgerDB key prefixes for analysis snapshots.
const (
	keyPrefixSnap      = "reader:snap:"
	keyPrefixSnapIndex = "reader:snap:index:"
	keySuffixData      = ":data"
	keySuffixMeta      = ":meta"
	keySuffixLatest    = ":latest"
)

// defaultListLimit caps List results when the caller passes no limit.
const defaultListLimit = 100

// SnapshotMetadata describes one saved graph snapshot.
type SnapshotMetadata struct {
	// SnapshotID identifies the snapshot.
	// Derived from SHA256(ProjectRoot + BuiltAtMilli)[:16].
	SnapshotID string `json:"snapshot_id"`

	// ProjectRoot is the analyzed project root path.
	ProjectRoot string `json:"project_root"`

	// ProjectHash is SHA256(ProjectRoot)[:16], the key grouping prefix.
	ProjectHash string `json:"project_hash"`

	// GraphHash is the canonical content hash of the graph.
	GraphHash string `json:"graph_hash"`

	// Label is an optional human-readable label.
	Label string `json:"label,omitempty"`

	// CreatedAtMilli is when the snapshot was saved (Unix milliseconds).
	CreatedAtMilli int64 `json:"created_at_milli"`

	// Modules, InternalEdges, ExternalPackages and Functions summarize
	// the graph content for listings.
	Modules          int `json:"modules"`
	InternalEdges    int `json:"internal_edges"`
	ExternalPackages int `json:"external_packages"`
	Functions        int `json:"functions"`

	// SchemaVersion is the serialization schema the payload was written
	// with.
	SchemaVersion string `json:"schema_version"`

	// CompressedSize is the gzip payload size in bytes.
	CompressedSize int64 `json:"compressed_size"`

	// ContentHash is the SHA256 of the compressed payload, checked on
	// load.
	ContentHash string `json:"content_hash"`
}

// SnapshotStore persists frozen graphs in BadgerDB as gzip-compressed
// JSON.
//
// Thread Safety: safe for concurrent use. BadgerDB handles its own
// concurrency control; the store keeps no mutable state of its own.
type SnapshotStore struct {
	db *badger.DB
}

// NewSnapshotStore creates a store over an opened BadgerDB instance. The
// caller owns the DB lifecycle and closes it when done.
func NewSnapshotStore(db *badger.DB) (*SnapshotStore, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	return &SnapshotStore{db: db}, nil
}

// OpenBadger opens a BadgerDB at path with logging quieted down to match
// the rest of the process. An empty path opens an in-memory instance,
// which tests and one-shot CLI runs use.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", path, err)
	}
	return db, nil
}

// Save persists one frozen graph snapshot.
//
// Description:
//
//	Serializes the graph to JSON, gzip-compresses it and writes payload,
//	metadata, the per-project latest pointer and the reverse index entry
//	in a single transaction.
//
// Key Schema:
//
//	reader:snap:{projectHash}:{snapshotID}:data → gzip(JSON(SerializableGraph))
//	reader:snap:{projectHash}:{snapshotID}:meta → JSON(SnapshotMetadata)
//	reader:snap:{projectHash}:latest            → snapshotID
//	reader:snap:index:{snapshotID}              → projectHash
//
// Inputs:
//   - ctx: context for tracing and metric recording
//   - g: the graph to snapshot; must be frozen
//   - label: optional human-readable label
//
// Outputs:
//   - *SnapshotMetadata: metadata of the saved snapshot
//   - error: serialization or storage failure
func (s *SnapshotStore) Save(ctx context.Context, g *DependencyGraph, label string) (meta *SnapshotMetadata, err error) {
	ctx, span := tracer.Start(ctx, "SnapshotStore.Save")
	defer span.End()
	defer func() { recordSnapshotOp(ctx, "save", err) }()

	if g == nil {
		return nil, ErrGraphNil
	}

	sg := g.ToSerializable()
	jsonData, err := json.Marshal(sg)
	if err != nil {
		return nil, fmt.Errorf("marshaling graph: %w", err)
	}

	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err = gw.Write(jsonData); err != nil {
		return nil, fmt.Errorf("compressing graph: %w", err)
	}
	if err = gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	payload := compressed.Bytes()

	projectHash := ProjectHash(g.ProjectRoot())
	snapshotID := hashString(fmt.Sprintf("%s:%d", g.ProjectRoot(), g.BuiltAtMilli()))[:16]

	meta = &SnapshotMetadata{
		SnapshotID:       snapshotID,
		ProjectRoot:      g.ProjectRoot(),
		ProjectHash:      projectHash,
		GraphHash:        sg.GraphHash,
		Label:            label,
		CreatedAtMilli:   time.Now().UnixMilli(),
		Modules:          g.ModuleCount(),
		InternalEdges:    g.InternalEdgeCount(),
		ExternalPackages: g.ExternalPackageCount(),
		Functions:        g.FunctionCount(),
		SchemaVersion:    SchemaVersion,
		CompressedSize:   int64(len(payload)),
		ContentHash:      hashBytes(payload),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	dataKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixMeta
	latestKey := keyPrefixSnap + projectHash + keySuffixLatest
	indexKey := keyPrefixSnapIndex + snapshotID

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(dataKey), payload); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set([]byte(metaKey), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set([]byte(latestKey), []byte(snapshotID)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		if err := txn.Set([]byte(indexKey), []byte(projectHash)); err != nil {
			return fmt.Errorf("storing reverse index: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}

	slog.Info("snapshot saved",
		slog.String("snapshot_id", snapshotID),
		slog.String("project_root", g.ProjectRoot()),
		slog.Int("modules", meta.Modules),
		slog.Int64("compressed_size", meta.CompressedSize))

	return meta, nil
}

// Load retrieves one snapshot by ID.
//
// Outputs:
//   - *DependencyGraph: reconstructed frozen graph
//   - *SnapshotMetadata: the stored metadata
//   - error: ErrSnapshotNotFound, ErrSnapshotCorrupt, ErrSchemaIncompatible
//     or a storage failure
func (s *SnapshotStore) Load(ctx context.Context, snapshotID string) (g *DependencyGraph, meta *SnapshotMetadata, err error) {
	ctx, span := tracer.Start(ctx, "SnapshotStore.Load")
	defer span.End()
	defer func() { recordSnapshotOp(ctx, "load", err) }()

	if snapshotID == "" {
		return nil, nil, fmt.Errorf("%w: empty snapshot id", ErrSnapshotNotFound)
	}

	projectHash, err := s.projectHashFor(snapshotID)
	if err != nil {
		return nil, nil, err
	}
	return s.loadByKeys(projectHash, snapshotID)
}

// LoadLatest loads the most recent snapshot for a project, identified by
// its ProjectHash.
func (s *SnapshotStore) LoadLatest(ctx context.Context, projectHash string) (g *DependencyGraph, meta *SnapshotMetadata, err error) {
	ctx, span := tracer.Start(ctx, "SnapshotStore.LoadLatest")
	defer span.End()
	defer func() { recordSnapshotOp(ctx, "load_latest", err) }()

	if projectHash == "" {
		return nil, nil, fmt.Errorf("%w: empty project hash", ErrSnapshotNotFound)
	}

	latestKey := keyPrefixSnap + projectHash + keySuffixLatest
	var snapshotID string
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			snapshotID = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil, fmt.Errorf("%w: no snapshots for project %s", ErrSnapshotNotFound, projectHash)
		}
		return nil, nil, fmt.Errorf("reading latest pointer for %s: %w", projectHash, err)
	}

	return s.loadByKeys(projectHash, snapshotID)
}

// List returns snapshot metadata, newest first.
//
// Inputs:
//   - ctx: context for tracing
//   - projectHash: optional filter; empty lists every project
//   - limit: maximum results; non-positive means 100
func (s *SnapshotStore) List(ctx context.Context, projectHash string, limit int) (results []*SnapshotMetadata, err error) {
	ctx, span := tracer.Start(ctx, "SnapshotStore.List")
	defer span.End()
	defer func() { recordSnapshotOp(ctx, "list", err) }()

	if limit <= 0 {
		limit = defaultListLimit
	}

	prefix := keyPrefixSnap
	if projectHash != "" {
		prefix = keyPrefixSnap + projectHash + ":"
	}

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if !isMetaKey(key) {
				continue
			}

			var meta SnapshotMetadata
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				slog.Warn("skipping corrupt snapshot metadata",
					slog.String("key", key),
					slog.String("error", err.Error()))
				continue
			}
			results = append(results, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAtMilli > results[j].CreatedAtMilli
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes one snapshot: payload, metadata and reverse index. When
// the deleted snapshot was the project's latest, the latest pointer goes
// with it.
func (s *SnapshotStore) Delete(ctx context.Context, snapshotID string) (err error) {
	ctx, span := tracer.Start(ctx, "SnapshotStore.Delete")
	defer span.End()
	defer func() { recordSnapshotOp(ctx, "delete", err) }()

	if snapshotID == "" {
		return fmt.Errorf("%w: empty snapshot id", ErrSnapshotNotFound)
	}

	projectHash, err := s.projectHashFor(snapshotID)
	if err != nil {
		return err
	}

	dataKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixMeta
	latestKey := keyPrefixSnap + projectHash + keySuffixLatest
	indexKey := keyPrefixSnapIndex + snapshotID

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range []string{dataKey, metaKey, indexKey} {
			if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("deleting %s: %w", key, err)
			}
		}

		item, err := txn.Get([]byte(latestKey))
		if err != nil {
			return nil
		}
		var currentLatest string
		_ = item.Value(func(val []byte) error {
			currentLatest = string(val)
			return nil
		})
		if currentLatest == snapshotID {
			if err := txn.Delete([]byte(latestKey)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("deleting latest pointer: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", snapshotID, err)
	}

	slog.Info("snapshot deleted", slog.String("snapshot_id", snapshotID))
	return nil
}

// loadByKeys reads, verifies and reconstructs one snapshot.
func (s *SnapshotStore) loadByKeys(projectHash, snapshotID string) (*DependencyGraph, *SnapshotMetadata, error) {
	dataKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixMeta

	var payload, metaJSON []byte
	err := s.db.View(func(txn *badger.Txn) error {
		dataItem, err := txn.Get([]byte(dataKey))
		if err != nil {
			return err
		}
		if payload, err = dataItem.ValueCopy(nil); err != nil {
			return fmt.Errorf("copying data: %w", err)
		}

		metaItem, err := txn.Get([]byte(metaKey))
		if err != nil {
			return err
		}
		if metaJSON, err = metaItem.ValueCopy(nil); err != nil {
			return fmt.Errorf("copying metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapshotID)
		}
		return nil, nil, fmt.Errorf("reading snapshot %s: %w", snapshotID, err)
	}

	var meta SnapshotMetadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("%w: metadata for %s: %v", ErrSnapshotCorrupt, snapshotID, err)
	}
	if meta.ContentHash != "" && meta.ContentHash != hashBytes(payload) {
		return nil, nil, fmt.Errorf("%w: content hash mismatch for %s", ErrSnapshotCorrupt, snapshotID)
	}

	gr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decompressing %s: %v", ErrSnapshotCorrupt, snapshotID, err)
	}
	defer gr.Close()

	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading %s: %v", ErrSnapshotCorrupt, snapshotID, err)
	}

	var sg SerializableGraph
	if err := json.Unmarshal(jsonData, &sg); err != nil {
		return nil, nil, fmt.Errorf("%w: unmarshaling %s: %v", ErrSnapshotCorrupt, snapshotID, err)
	}

	if !schemaCompatible(sg.SchemaVersion) {
		return nil, nil, fmt.Errorf("%w: snapshot %s has schema %s, current %s",
			ErrSchemaIncompatible, snapshotID, sg.SchemaVersion, SchemaVersion)
	}

	g, err := FromSerializable(&sg)
	if err != nil {
		return nil, nil, fmt.Errorf("reconstructing graph for %s: %w", snapshotID, err)
	}
	return g, &meta, nil
}

// projectHashFor resolves a snapshot ID to its project hash through the
// reverse index.
func (s *SnapshotStore) projectHashFor(snapshotID string) (string, error) {
	indexKey := keyPrefixSnapIndex + snapshotID
	var projectHash string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(indexKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			projectHash = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapshotID)
		}
		return "", fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}
	return projectHash, nil
}

// schemaCompatible reports whether a stored schema version can be loaded
// by this build. Compatibility is semver major equality.
func schemaCompatible(stored string) bool {
	if stored == "" {
		return false
	}
	storedMajor := semver.Major("v" + stored)
	currentMajor := semver.Major("v" + SchemaVersion)
	return storedMajor != "" && storedMajor == currentMajor
}

// ProjectHash returns SHA256(projectRoot)[:16], the key grouping prefix
// for one project. Exported so handlers can translate a project_root
// parameter into the stored form.
func ProjectHash(projectRoot string) string {
	return hashString(projectRoot)[:16]
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// isMetaKey reports whether a key carries snapshot metadata.
func isMetaKey(key string) bool {
	return len(key) > len(keySuffixMeta) && key[len(key)-len(keySuffixMeta):] == keySuffixMeta
}
