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
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianStudio/pkg/ux"
	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
)

func runVersionsList(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	versions, err := client.ListVersions(context.Background())
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	printVersions(versions)
}

func runVersionsUse(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	versions, err := client.SetActiveVersion(context.Background(), args[0])
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	if versions.ActiveID != args[0] {
		// The service falls back to the newest version when the requested
		// one no longer exists.
		ux.Warning("Version " + args[0] + " is gone; the newest version is active instead.")
	} else {
		ux.Success("Active version is now " + versions.ActiveID)
	}
	printVersions(versions)
}

func runVersionsDelete(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	versions, err := client.DeleteVersion(context.Background(), args[0])
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	ux.Success("Deleted " + args[0])
	printVersions(versions)
}

// printVersions renders the history, oldest first, marking the active entry.
func printVersions(versions datatypes.VersionsResponse) {
	if len(versions.Versions) == 0 {
		ux.Muted("No versions yet.")
		return
	}
	ux.Title(fmt.Sprintf("Versions (%d of 10)", len(versions.Versions)))
	for i, v := range versions.Versions {
		marker := " "
		if v.ID == versions.ActiveID {
			marker = "*"
		}
		edited := ""
		if v.IsEdited {
			edited = " (edited)"
		}
		fmt.Printf("%s %2d  %s  %s%s\n    %s\n",
			marker, i+1, v.ID,
			v.CreatedAt.Local().Format("2006-01-02 15:04:05"), edited,
			firstLine(v.EffectiveText()))
	}
}

// firstLine trims a lyric body down to a one-line preview.
func firstLine(text string) string {
	line := text
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	const max = 72
	if len(line) > max {
		line = line[:max-3] + "..."
	}
	return line
}
