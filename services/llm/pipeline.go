package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// LyricsRequest describes one lyrics generation or regeneration call.
// Content is the user-facing theme or prompt; Params tunes the backend.
type LyricsRequest struct {
	Content string           `json:"content"`
	Params  GenerationParams `json:"params"`
}

// LyricsResult is the pipeline output. Fingerprint identifies the prompt
// content, not the generated text: two requests with the same normalized
// content share a fingerprint, so callers can detect when the underlying
// input changed and the version history must reset.
type LyricsResult struct {
	Text        string `json:"text"`
	Fingerprint string `json:"fingerprint"`
}

// Pipeline turns prompt content into lyric text via a pluggable backend.
type Pipeline struct {
	client LLMClient
}

func NewPipeline(client LLMClient) *Pipeline {
	return &Pipeline{client: client}
}

// Generate produces lyrics for the request content.
//
// # Inputs
//   - ctx: Caller context. Backend calls respect cancellation and deadline.
//   - req: Prompt content plus generation parameters.
//
// # Outputs
//   - LyricsResult: Generated text and the content fingerprint.
//   - error: Backend failure, or validation failure on empty content.
func (p *Pipeline) Generate(ctx context.Context, req LyricsRequest) (LyricsResult, error) {
	normalized := NormalizeContent(req.Content)
	if normalized == "" {
		return LyricsResult{}, fmt.Errorf("lyrics content is empty")
	}

	text, err := p.client.Generate(ctx, normalized, req.Params)
	if err != nil {
		return LyricsResult{}, fmt.Errorf("lyrics generation failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return LyricsResult{}, fmt.Errorf("backend returned empty lyrics")
	}

	return LyricsResult{
		Text:        text,
		Fingerprint: Fingerprint(req.Content),
	}, nil
}

// NormalizeContent canonicalizes prompt content so that cosmetic edits
// (surrounding whitespace, CRLF line endings, runs of blank lines) do not
// change the fingerprint.
func NormalizeContent(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Fingerprint returns the hex sha256 of the normalized content.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(NormalizeContent(content)))
	return hex.EncodeToString(sum[:])
}
