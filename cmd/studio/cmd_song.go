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
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianStudio/pkg/ux"
)

func runSongCreate(cmd *cobra.Command, args []string) {
	client := newAPIClient()

	params := map[string]any{}
	if songStyle != "" {
		params["style"] = songStyle
	}
	if songDuration > 0 {
		params["duration_sec"] = songDuration
	}

	resp, err := client.CreateSong(context.Background(), params)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	ux.Success("Song submitted: task " + resp.TaskID)

	if watchAfterCreate {
		watchTask(resp.TaskID)
		return
	}
	ux.Hint("Follow it with: studio watch " + resp.TaskID)
}

func runSongPrimary(cmd *cobra.Command, args []string) {
	index, err := strconv.Atoi(args[1])
	if err != nil {
		ux.Error("The variation index must be a number (0 or 1).")
		os.Exit(1)
	}

	client := newAPIClient()
	resp, err := client.SwitchPrimary(context.Background(), args[0], index)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	ux.Success(fmt.Sprintf("Variation %d is now the primary for task %s",
		resp.PrimaryIndex, resp.TaskID))
}

func runQuota(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	quota, err := client.GetQuota(context.Background(), quotaCounter)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	ux.Title("Quota: " + quota.Counter)
	ux.Info(fmt.Sprintf("%d of %d remaining", quota.Remaining, quota.Total))
	if !quota.ResetAt.IsZero() {
		ux.Muted("resets " + quota.ResetAt.Local().Format("2006-01-02 15:04:05"))
	}
}
