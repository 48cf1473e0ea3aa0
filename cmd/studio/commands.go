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
	"github.com/AleutianAI/AleutianStudio/pkg/ux"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	serverURL        string // CLI override for server.url
	regenerate       bool
	songStyle        string
	songDuration     int
	watchAfterCreate bool
	editWatch        bool
	quotaCounter     string
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	rootCmd = &cobra.Command{
		Use:   "studio",
		Short: "A cli for the Aleutian song studio",
		Long: `Studio drives the AleutianStudio service: generate lyrics,
				manage the version history, submit songs for generation,
				and follow task progress live.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
		},
	}

	// --- Lyrics ---
	generateCmd = &cobra.Command{
		Use:     "generate [prompt...]",
		Short:   "Generate lyrics from a prompt (reads stdin when no args)",
		Aliases: []string{"gen"},
		Run:     runGenerate, // Defined in cmd_lyrics.go
	}

	lyricsCmd = &cobra.Command{
		Use:   "lyrics",
		Short: "Work with the current lyric text",
	}
	lyricsShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the active lyric text",
		Run:   runLyricsShow, // Defined in cmd_lyrics.go
	}
	lyricsEditCmd = &cobra.Command{
		Use:   "edit",
		Short: "Edit the active lyrics in a local file; --watch syncs saves to the service",
		Run:   runLyricsEdit, // Defined in cmd_lyrics.go
	}

	// --- Versions ---
	versionsCmd = &cobra.Command{
		Use:   "versions",
		Short: "Manage the lyric version history",
	}
	versionsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List all versions of the current lyrics",
		Run:   runVersionsList, // Defined in cmd_versions.go
	}
	versionsUseCmd = &cobra.Command{
		Use:   "use [version_id]",
		Short: "Make a version the active one",
		Args:  cobra.ExactArgs(1),
		Run:   runVersionsUse, // Defined in cmd_versions.go
	}
	versionsDeleteCmd = &cobra.Command{
		Use:   "delete [version_id]",
		Short: "Delete a version from the history",
		Args:  cobra.ExactArgs(1),
		Run:   runVersionsDelete, // Defined in cmd_versions.go
	}

	// --- Songs / Tasks ---
	songCmd = &cobra.Command{
		Use:   "song",
		Short: "Submit and follow song generation",
	}
	songCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Submit the active lyrics for song generation",
		Run:   runSongCreate, // Defined in cmd_song.go
	}
	songPrimaryCmd = &cobra.Command{
		Use:   "primary [task_id] [index]",
		Short: "Switch which variation plays by default (0 or 1)",
		Args:  cobra.ExactArgs(2),
		Run:   runSongPrimary, // Defined in cmd_song.go
	}

	watchCmd = &cobra.Command{
		Use:   "watch [task_id]",
		Short: "Follow a generation task live",
		Args:  cobra.ExactArgs(1),
		Run:   runWatch, // Defined in cmd_watch.go
	}

	quotaCmd = &cobra.Command{
		Use:   "quota",
		Short: "Show the remaining generation quota",
		Run:   runQuota, // Defined in cmd_song.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"Studio service base URL (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output personality: full, standard, minimal, machine")

	generateCmd.Flags().BoolVar(&regenerate, "regenerate", false,
		"Use the regeneration quota counter instead of the generation one")

	lyricsEditCmd.Flags().BoolVar(&editWatch, "watch", false,
		"Keep watching the file and sync every save")

	songCreateCmd.Flags().StringVar(&songStyle, "style", "",
		"Musical style hint passed to the provider")
	songCreateCmd.Flags().IntVar(&songDuration, "duration", 0,
		"Requested song duration in seconds")
	songCreateCmd.Flags().BoolVar(&watchAfterCreate, "watch", false,
		"Follow the task live after submitting")

	quotaCmd.Flags().StringVar(&quotaCounter, "counter", "generation",
		"Quota counter to show: generation or regeneration")

	lyricsCmd.AddCommand(lyricsShowCmd, lyricsEditCmd)
	versionsCmd.AddCommand(versionsListCmd, versionsUseCmd, versionsDeleteCmd)
	songCmd.AddCommand(songCreateCmd, songPrimaryCmd)

	rootCmd.AddCommand(generateCmd, lyricsCmd, versionsCmd, songCmd, watchCmd, quotaCmd)
}
