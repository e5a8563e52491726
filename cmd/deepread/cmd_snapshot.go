// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"

	"github.com/Kuroakira/deep-code-reader/services/reader"
	"github.com/Kuroakira/deep-code-reader/services/reader/graph"
)

// openStore opens the snapshot store the CLI shares with readerd:
// DEEPREAD_SNAPSHOT_DIR, or ~/.deepread/snapshots. The caller closes the
// returned DB.
func openStore() (*badger.DB, *graph.SnapshotStore, error) {
	dir := os.Getenv("DEEPREAD_SNAPSHOT_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("resolving home directory: %w", err)
		}
		dir = filepath.Join(home, ".deepread", "snapshots")
	}
	db, err := graph.OpenBadger(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening snapshot store at %s: %w", dir, err)
	}
	store, err := graph.NewSnapshotStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("initializing snapshot store: %w", err)
	}
	return db, store, nil
}

func runSnapshotSave(cmd *cobra.Command, args []string) error {
	u := newUI(noColor)

	root, err := filepath.Abs(args[0])
	if err != nil {
		return usageErrorf("resolving %q: %v", args[0], err)
	}

	db, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	svc := reader.NewService(nil)
	svc.SetSnapshotStore(store)
	session, err := svc.Analyze(cmd.Context(), root)
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", root, err)
	}

	meta, err := svc.SaveSnapshot(cmd.Context(), session.ID, snapshotLabel)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	label := meta.Label
	if label == "" {
		label = "-"
	}
	rows := []row{
		{label: "Snapshot", value: meta.SnapshotID},
		{label: "Project", value: meta.ProjectRoot},
		{label: "Label", value: label},
		{label: "Modules", value: strconv.Itoa(meta.Modules)},
		{label: "Functions", value: strconv.Itoa(meta.Functions)},
		{label: "Size", value: formatBytes(meta.CompressedSize)},
		{label: "Created", value: formatMilli(meta.CreatedAtMilli)},
	}
	fmt.Println(u.table("Snapshot saved", rows))
	return nil
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	u := newUI(noColor)

	rootFilter := ""
	if len(args) == 1 {
		var err error
		rootFilter, err = filepath.Abs(args[0])
		if err != nil {
			return usageErrorf("resolving %q: %v", args[0], err)
		}
	}

	db, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	svc := reader.NewService(nil)
	svc.SetSnapshotStore(store)
	metas, err := svc.ListSnapshots(cmd.Context(), rootFilter, snapshotLimit)
	if err != nil {
		return fmt.Errorf("listing snapshots: %w", err)
	}
	if len(metas) == 0 {
		u.hintf("No snapshots found.")
		return nil
	}

	for _, meta := range metas {
		label := meta.Label
		if label == "" {
			label = "-"
		}
		fmt.Printf("%s  %s  %-20s %s\n",
			u.render(u.value, meta.SnapshotID),
			u.render(u.muted, formatMilli(meta.CreatedAtMilli)),
			label,
			u.render(u.muted, meta.ProjectRoot))
	}
	return nil
}

func runSnapshotShow(cmd *cobra.Command, args []string) error {
	u := newUI(noColor)

	db, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	svc := reader.NewService(nil)
	svc.SetSnapshotStore(store)
	session, meta, err := svc.LoadSnapshot(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("loading snapshot %s: %w", args[0], err)
	}

	label := meta.Label
	if label == "" {
		label = "-"
	}
	summary := session.Summary()
	cycles := row{label: "Cycles", value: strconv.Itoa(summary.Cycles)}
	if summary.Cycles > 0 {
		cycles.style = &u.warning
	}
	rows := []row{
		{label: "Snapshot", value: meta.SnapshotID},
		{label: "Project", value: meta.ProjectRoot},
		{label: "Label", value: label},
		{label: "Created", value: formatMilli(meta.CreatedAtMilli)},
		{label: "Schema", value: meta.SchemaVersion},
		{label: "Graph hash", value: shortHash(meta.GraphHash)},
		{label: "Size", value: formatBytes(meta.CompressedSize)},
		{label: "Modules", value: strconv.Itoa(summary.Modules)},
		{label: "Internal deps", value: strconv.Itoa(summary.InternalEdges)},
		{label: "External packages", value: strconv.Itoa(summary.ExternalPackages)},
		{label: "Functions", value: strconv.Itoa(summary.Functions)},
		cycles,
	}
	fmt.Println(u.table("Snapshot", rows))
	return nil
}

func runSnapshotDelete(cmd *cobra.Command, args []string) error {
	u := newUI(noColor)

	db, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	svc := reader.NewService(nil)
	svc.SetSnapshotStore(store)
	if err := svc.DeleteSnapshot(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", args[0], err)
	}
	u.successf("Deleted snapshot %s", args[0])
	return nil
}

func formatMilli(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
