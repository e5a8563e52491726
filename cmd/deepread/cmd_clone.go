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

	"github.com/spf13/cobra"

	"github.com/Kuroakira/deep-code-reader/services/reader/gitmeta"
)

func runClone(cmd *cobra.Command, args []string) error {
	u := newUI(noColor)

	client := gitmeta.NewClient()
	dir, err := client.Clone(cmd.Context(), args[0], cloneDir,
		gitmeta.WithCommit(cloneCommit), gitmeta.WithDepth(cloneDepth))
	if err != nil {
		return fmt.Errorf("cloning %s: %w", args[0], err)
	}
	u.successf("Cloned into %s", dir)

	info, err := client.Info(cmd.Context(), dir)
	if err != nil {
		u.warnf("repository metadata unavailable: %v", err)
		return nil
	}
	rows := []row{
		{label: "Commit", value: shortHash(info.CommitHash)},
		{label: "Subject", value: info.Subject},
		{label: "Branch", value: info.Branch},
		{label: "Remote", value: info.RemoteURL},
	}
	fmt.Println(u.table("Repository", rows))

	if cloneHistory > 0 {
		if cloneDepth > 0 {
			u.hintf("Shallow clone: history covers only the fetched commits (use --depth 0 for all).")
		}
		records, err := client.History(cmd.Context(), dir, 1, cloneHistory)
		if err != nil {
			u.warnf("history unavailable: %v", err)
			return nil
		}
		for _, rec := range records {
			fmt.Printf("%s  %s  %s\n",
				u.render(u.value, rec.ShortSHA),
				u.render(u.muted, rec.Date),
				rec.Subject)
		}
	}
	return nil
}
