// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command studio-service starts the AleutianStudio HTTP server.
//
// This is the main entry point for the containerized studio service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - STUDIO_PORT: HTTP server port (default: 12250)
//   - LLM_BACKEND: lyrics backend - ollama, openai (default: ollama)
//   - SONGGEN_URL: song provider REST base URL (required)
//   - SONGGEN_WS_URL: song provider push websocket URL (optional; poll-only when unset)
//   - SONGGEN_API_KEY: provider API key (optional)
//   - STUDIO_DATA_DIR: BadgerDB directory (default: ./data/studio)
//   - STUDIO_POLL_CROSSCHECK: keep polling while push is healthy (default: false)
//   - STUDIO_LOG_DIR: also write JSON logs to this directory (optional)
//   - STUDIO_DEBUG: enable debug-level logging (default: false)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: aleutian-otel-collector:4317)
//
// # Usage
//
//	# Build
//	go build -o studio-service ./cmd/studio-service
//
//	# Run
//	./studio-service
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianStudio/pkg/logging"
	"github.com/AleutianAI/AleutianStudio/services/studio"
)

func main() {
	// Setup structured logging
	logLevel := logging.LevelInfo
	if getEnvBool("STUDIO_DEBUG", false) {
		logLevel = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   logLevel,
		LogDir:  os.Getenv("STUDIO_LOG_DIR"),
		Service: "studio",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Build configuration from environment variables
	cfg := studio.Config{
		Port:           getEnvInt("STUDIO_PORT", 12250),
		LLMBackend:     getEnvString("LLM_BACKEND", "ollama"),
		ProviderURL:    os.Getenv("SONGGEN_URL"),
		ProviderWSURL:  os.Getenv("SONGGEN_WS_URL"),
		ProviderAPIKey: os.Getenv("SONGGEN_API_KEY"),
		DataDir:        getEnvString("STUDIO_DATA_DIR", "./data/studio"),
		PollCrossCheck: getEnvBool("STUDIO_POLL_CROSSCHECK", false),
		OTelEndpoint:   getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "aleutian-otel-collector:4317"),
		EnableMetrics:  true,
	}

	slog.Info("Starting studio",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"provider_url", cfg.ProviderURL,
		"poll_crosscheck", cfg.PollCrossCheck,
	)

	// Create the studio with default (no-op) extension options.
	// Enterprise builds pass custom ServiceOptions here.
	svc, err := studio.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create studio: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Studio error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}
