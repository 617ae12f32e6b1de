// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package renderer

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rtk-project/rtk/pkg/artifact"
	"github.com/rtk-project/rtk/pkg/freshness"
)

// Stats mirrors the envelope's `stats` object.
type Stats struct {
	FileCount       int   `json:"file_count"`
	TotalBytes      int64 `json:"total_bytes"`
	ReusedEntries   int   `json:"reused_entries"`
	RehashedEntries int   `json:"rehashed_entries"`
}

// Envelope is the response wrapper common to explore/plan/delta/refresh.
type Envelope struct {
	Command         string                  `json:"command"`
	ProjectRoot     string                  `json:"project_root"`
	ArtifactVersion int                     `json:"artifact_version"`
	CacheStatus     artifact.CacheEventKind `json:"cache_status"`
	Freshness       freshness.State         `json:"freshness"`
	Stats           Stats                   `json:"stats"`
	BuiltAt         time.Time               `json:"built_at"`
}

// Slim returns a copy with the fields the llm profile omits zeroed
// out: command, artifact_version, and (by convention of the caller
// not serializing BuiltAt/internal counters) the diagnostic-only
// fields. Full profile keeps everything.
func (e Envelope) Slim(profile Profile) Envelope {
	if profile != ProfileLLM {
		return e
	}
	e.Command = ""
	e.ArtifactVersion = 0
	return e
}

// WriteText renders a human-readable summary line using byte/time
// humanization; suppressed entirely under --json (the caller simply
// doesn't call WriteText in that mode).
func WriteText(w io.Writer, e Envelope) error {
	age := "n/a"
	if !e.BuiltAt.IsZero() {
		age = humanize.Time(e.BuiltAt)
	}
	_, err := fmt.Fprintf(w, "%s: %s — %d files (%s), cache=%s freshness=%s, built %s\n",
		e.Command, e.ProjectRoot, e.Stats.FileCount, humanize.Bytes(uint64(e.Stats.TotalBytes)),
		e.CacheStatus, e.Freshness, age)
	return err
}
