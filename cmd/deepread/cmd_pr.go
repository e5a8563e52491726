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

	"github.com/Kuroakira/deep-code-reader/services/reader/prcontext"
)

func runPR(cmd *cobra.Command, args []string) error {
	owner, repo, number, err := prcontext.ParseRef(args[0])
	if err != nil {
		return usageErrorf("%v", err)
	}

	var opts []prcontext.ClientOption
	if prToken != "" {
		opts = append(opts, prcontext.WithToken(prToken))
	}
	client := prcontext.NewClient(opts...)

	prCtx, err := client.FetchContext(cmd.Context(), owner, repo, number)
	if err != nil {
		return fmt.Errorf("fetching %s/%s#%d: %w", owner, repo, number, err)
	}
	fmt.Print(prcontext.FormatMarkdown(prCtx))
	return nil
}
