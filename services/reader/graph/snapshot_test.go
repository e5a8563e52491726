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
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/Kuroakira/deep-code-reader/services/reader/ast"
)

// newTestStore opens an in-memory badger instance scoped to the test.
func newTestStore(t *testing.T) (*SnapshotStore, *badger.DB) {
	t.Helper()
	db, err := OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSnapshotStore(db)
	if err != nil {
		t.Fatalf("NewSnapshotStore: %v", err)
	}
	return store, db
}

// snapshotGraph builds a small frozen graph for snapshot round-trips.
func snapshotGraph(t *testing.T, root string) *DependencyGraph {
	t.Helper()
	g := NewDependencyGraph(root)
	mustAdd := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("building graph: %v", err)
		}
	}

	mustAdd(g.AddModule("app.main", "app/main.py", "python"))
	mustAdd(g.AddModule("app.services.auth", "app/services/auth.py", "python"))
	mustAdd(g.AddDependency("app.main", "app.services.auth"))
	mustAdd(g.AddExternal("requests"))
	mustAdd(g.AddExternal("requests"))
	mustAdd(g.AddExternal("flask"))
	mustAdd(g.AddFunction("app/services/auth.py", ast.Function{
		Name: "login", StartLine: 10, Params: []string{"user", "password"},
		Calls: []string{"verify_token"},
	}))
	mustAdd(g.AddFunction("app/services/auth.py", ast.Function{
		Name: "verify_token", StartLine: 30, Calls: []string{"decode"},
	}))
	return g.Freeze()
}

func TestSnapshotStore_SaveLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	g := snapshotGraph(t, "/tmp/roundtrip")

	meta, err := store.Save(context.Background(), g, "before refactor")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if meta.SnapshotID == "" || meta.ProjectHash != ProjectHash("/tmp/roundtrip") {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if meta.Modules != 2 || meta.InternalEdges != 1 || meta.Functions != 2 {
		t.Errorf("metadata counts = %d/%d/%d, want 2/1/2",
			meta.Modules, meta.InternalEdges, meta.Functions)
	}
	if meta.Label != "before refactor" {
		t.Errorf("label = %q", meta.Label)
	}

	loaded, loadedMeta, err := store.Load(context.Background(), meta.SnapshotID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loadedMeta.SnapshotID != meta.SnapshotID {
		t.Errorf("loaded metadata ID = %q, want %q", loadedMeta.SnapshotID, meta.SnapshotID)
	}
	if !loaded.IsFrozen() {
		t.Error("loaded graph should be frozen")
	}
	if loaded.ContentHash() != g.ContentHash() {
		t.Error("content hash changed across the round trip")
	}
	if loaded.BuiltAtMilli() != g.BuiltAtMilli() {
		t.Errorf("built at = %d, want %d", loaded.BuiltAtMilli(), g.BuiltAtMilli())
	}
	if got := loaded.Modules(); !reflect.DeepEqual(got, []string{"app.main", "app.services.auth"}) {
		t.Errorf("module order = %v", got)
	}
	if loaded.ExternalUsageCount("requests") != 2 {
		t.Errorf("requests count = %d, want 2", loaded.ExternalUsageCount("requests"))
	}
	if got := loaded.CallsOf("login"); !reflect.DeepEqual(got, []string{"verify_token"}) {
		t.Errorf("login calls = %v", got)
	}
}

func TestSnapshotStore_LoadLatest(t *testing.T) {
	store, _ := newTestStore(t)

	g1 := snapshotGraph(t, "/tmp/latest")
	if _, err := store.Save(context.Background(), g1, "first"); err != nil {
		t.Fatalf("Save first: %v", err)
	}

	g2 := snapshotGraph(t, "/tmp/latest")
	g2.builtAtMilli = g1.BuiltAtMilli() + 5 // distinct snapshot ID
	meta2, err := store.Save(context.Background(), g2, "second")
	if err != nil {
		t.Fatalf("Save second: %v", err)
	}

	_, latestMeta, err := store.LoadLatest(context.Background(), ProjectHash("/tmp/latest"))
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if latestMeta.SnapshotID != meta2.SnapshotID {
		t.Errorf("latest = %q, want %q", latestMeta.SnapshotID, meta2.SnapshotID)
	}
}

func TestSnapshotStore_Load_NotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, _, err := store.Load(context.Background(), "deadbeefdeadbeef")
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound, got %v", err)
	}

	_, _, err = store.LoadLatest(context.Background(), ProjectHash("/tmp/never-saved"))
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound for latest, got %v", err)
	}
}

func TestSnapshotStore_Load_CorruptPayload(t *testing.T) {
	store, db := newTestStore(t)
	g := snapshotGraph(t, "/tmp/corrupt")

	meta, err := store.Save(context.Background(), g, "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	dataKey := keyPrefixSnap + meta.ProjectHash + ":" + meta.SnapshotID + keySuffixData
	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(dataKey), []byte("not gzip at all"))
	})
	if err != nil {
		t.Fatalf("corrupting payload: %v", err)
	}

	_, _, err = store.Load(context.Background(), meta.SnapshotID)
	if !errors.Is(err, ErrSnapshotCorrupt) {
		t.Errorf("expected ErrSnapshotCorrupt, got %v", err)
	}
}

func TestSnapshotStore_Load_SchemaIncompatible(t *testing.T) {
	store, db := newTestStore(t)
	g := snapshotGraph(t, "/tmp/schema")

	meta, err := store.Save(context.Background(), g, "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Rewrite the stored payload with a different schema major, keeping
	// the metadata content hash in sync so the integrity check passes.
	sg := g.ToSerializable()
	sg.SchemaVersion = "2.0.0"
	jsonData, err := json.Marshal(sg)
	if err != nil {
		t.Fatalf("marshal doctored graph: %v", err)
	}
	var compressed bytes.Buffer
	gw := gzip.NewWriter(&compressed)
	if _, err := gw.Write(jsonData); err != nil {
		t.Fatalf("compress doctored graph: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	payload := compressed.Bytes()

	meta.ContentHash = hashBytes(payload)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal doctored metadata: %v", err)
	}

	dataKey := keyPrefixSnap + meta.ProjectHash + ":" + meta.SnapshotID + keySuffixData
	metaKey := keyPrefixSnap + meta.ProjectHash + ":" + meta.SnapshotID + keySuffixMeta
	err = db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(dataKey), payload); err != nil {
			return err
		}
		return txn.Set([]byte(metaKey), metaJSON)
	})
	if err != nil {
		t.Fatalf("rewriting snapshot: %v", err)
	}

	_, _, err = store.Load(context.Background(), meta.SnapshotID)
	if !errors.Is(err, ErrSchemaIncompatible) {
		t.Errorf("expected ErrSchemaIncompatible, got %v", err)
	}
}

func TestSnapshotStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	g := snapshotGraph(t, "/tmp/delete")

	meta, err := store.Save(context.Background(), g, "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Delete(context.Background(), meta.SnapshotID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, _, err := store.Load(context.Background(), meta.SnapshotID); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound after delete, got %v", err)
	}
	if _, _, err := store.LoadLatest(context.Background(), meta.ProjectHash); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("expected latest pointer to be gone, got %v", err)
	}
}

func TestSnapshotStore_List(t *testing.T) {
	store, _ := newTestStore(t)

	gA := snapshotGraph(t, "/tmp/project-a")
	if _, err := store.Save(context.Background(), gA, "a1"); err != nil {
		t.Fatalf("Save a1: %v", err)
	}
	gA2 := snapshotGraph(t, "/tmp/project-a")
	gA2.builtAtMilli = gA.BuiltAtMilli() + 5
	if _, err := store.Save(context.Background(), gA2, "a2"); err != nil {
		t.Fatalf("Save a2: %v", err)
	}
	gB := snapshotGraph(t, "/tmp/project-b")
	if _, err := store.Save(context.Background(), gB, "b1"); err != nil {
		t.Fatalf("Save b1: %v", err)
	}

	all, err := store.List(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].CreatedAtMilli < all[i].CreatedAtMilli {
			t.Errorf("list not newest-first at %d", i)
		}
	}

	onlyA, err := store.List(context.Background(), ProjectHash("/tmp/project-a"), 0)
	if err != nil {
		t.Fatalf("List project-a: %v", err)
	}
	if len(onlyA) != 2 {
		t.Fatalf("expected 2 snapshots for project-a, got %d", len(onlyA))
	}
	for _, m := range onlyA {
		if m.ProjectRoot != "/tmp/project-a" {
			t.Errorf("filtered list contains %q", m.ProjectRoot)
		}
	}

	limited, err := store.List(context.Background(), "", 1)
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected limit 1, got %d", len(limited))
	}
}
