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
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianStudio/cmd/studio/config"
	"github.com/AleutianAI/AleutianStudio/pkg/ux"
	"github.com/AleutianAI/AleutianStudio/services/studio/datatypes"
	"github.com/AleutianAI/AleutianStudio/services/studio/history"
)

// runGenerate asks the service for new lyrics and prints the result.
func runGenerate(cmd *cobra.Command, args []string) {
	prompt := strings.Join(args, " ")
	if strings.TrimSpace(prompt) == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			ux.Error(fmt.Sprintf("Failed to read the prompt from stdin: %v", err))
			os.Exit(1)
		}
		prompt = string(data)
	}
	if strings.TrimSpace(prompt) == "" {
		ux.Error("No prompt given. Pass it as arguments or pipe it on stdin.")
		os.Exit(1)
	}

	client := newAPIClient()
	spinner := ux.NewSpinner("Writing lyrics...")
	spinner.Start()
	resp, err := client.GenerateLyrics(context.Background(), prompt, regenerate)
	if err != nil {
		spinner.StopWithError("Generation failed")
		ux.Error(err.Error())
		os.Exit(1)
	}
	spinner.StopWithSuccess("Lyrics ready")

	ux.Muted("version " + resp.Version.ID)
	fmt.Println(resp.Version.Text)
}

// runLyricsShow prints the active version's effective text.
func runLyricsShow(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	versions, err := client.ListVersions(context.Background())
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	active, ok := findVersion(versions, versions.ActiveID)
	if !ok {
		ux.Warning("No lyrics yet. Run `studio generate` first.")
		return
	}
	fmt.Println(active.EffectiveText())
}

// runLyricsEdit writes the active lyrics to a local file for editing.
//
// Without --watch it writes the file and prints its path. With --watch it
// stays running, syncing every save back to the service until interrupted.
func runLyricsEdit(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	versions, err := client.ListVersions(ctx)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	active, ok := findVersion(versions, versions.ActiveID)
	if !ok {
		ux.Warning("No lyrics yet. Run `studio generate` first.")
		return
	}

	path, err := workFilePath()
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	if err := os.WriteFile(path, []byte(active.EffectiveText()), 0644); err != nil {
		ux.Error(fmt.Sprintf("Failed to write the work file: %v", err))
		os.Exit(1)
	}
	ux.Success("Lyrics written to " + path)

	if !editWatch {
		ux.Info("Edit the file, then rerun with --watch to sync saves live.")
		return
	}

	if err := watchAndSync(ctx, client, path, active.ID); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
}

// watchAndSync pushes every debounced save of path to the active version.
func watchAndSync(ctx context.Context, client *apiClient, path, versionID string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create the file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: many editors replace the file on
	// save, which drops a direct watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	debounce := time.Duration(config.Global.Editor.DebounceMs) * time.Millisecond
	var timer *time.Timer
	var timerC <-chan time.Time

	ux.Info("Watching for saves. Ctrl-C to stop.")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			data, err := os.ReadFile(path)
			if err != nil {
				ux.Warning(fmt.Sprintf("Could not read the work file: %v", err))
				continue
			}
			if _, err := client.EditVersion(ctx, versionID, string(data)); err != nil {
				ux.Warning("Sync failed: " + err.Error())
				continue
			}
			ux.Success(fmt.Sprintf("Synced %d bytes", len(data)))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ux.Warning("Watcher error: " + err.Error())
		}
	}
}

// workFilePath resolves where the editable lyric text lives.
func workFilePath() (string, error) {
	if config.Global.Editor.WorkFile != "" {
		return config.Global.Editor.WorkFile, nil
	}
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return filepath.Join(dir, "lyrics.txt"), nil
}

// findVersion looks a version up by ID in a listing.
func findVersion(versions datatypes.VersionsResponse, id string) (history.Version, bool) {
	for _, v := range versions.Versions {
		if v.ID == id {
			return v, true
		}
	}
	return history.Version{}, false
}
