// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, models and messages.
package model

import (
	"fmt"
	"sort"
	"time"
)

// Availability says whether a model is installed on the Ollama server.
type Availability string

const (
	Available    Availability = "available"
	NotAvailable Availability = "not_available"
)

// =============================================================================
// MODEL TYPE
// =============================================================================

// Model is an Ollama model known to the client.
type Model struct {
	// Name is the model tag used in API calls, e.g. "llama3.2:latest".
	Name         string       `json:"name"`
	Availability Availability `json:"availability"`

	Size       int64     `json:"size,omitempty"`
	Family     string    `json:"family,omitempty"`
	ModifiedAt time.Time `json:"modified_at,omitempty"`
}

// IsAvailable reports whether the model is installed.
func (m *Model) IsAvailable() bool {
	return m != nil && m.Availability == Available
}

// IsNotAvailable reports whether the model is known to be missing.
// A nil model is neither available nor unavailable.
func (m *Model) IsNotAvailable() bool {
	return m != nil && m.Availability != Available
}

// FormatSize formats the model size in human-readable form.
func (m *Model) FormatSize() string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case m.Size >= GB:
		return fmt.Sprintf("%.1f GB", float64(m.Size)/GB)
	case m.Size >= MB:
		return fmt.Sprintf("%.1f MB", float64(m.Size)/MB)
	case m.Size >= KB:
		return fmt.Sprintf("%.1f KB", float64(m.Size)/KB)
	default:
		return fmt.Sprintf("%d B", m.Size)
	}
}

// =============================================================================
// MODEL SETS
// =============================================================================

// MergeAvailability marks every model in known as available when it appears in
// installed and not available otherwise. Installed models that were not known
// are added. The result is sorted by name.
func MergeAvailability(known, installed []Model) []Model {
	byName := make(map[string]Model, len(known)+len(installed))
	for _, m := range known {
		m.Availability = NotAvailable
		byName[m.Name] = m
	}
	for _, m := range installed {
		m.Availability = Available
		byName[m.Name] = m
	}

	out := make([]Model, 0, len(byName))
	for _, m := range byName {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
