// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a conversation and its transcript to a file.
//
// # Supported Formats
//
//   - Markdown: human-readable, with YAML frontmatter
//   - JSON: machine-readable, the stored records as they are
//
// # Usage
//
//	exporter, err := export.New("markdown", export.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	path, err := export.ExportToFile(&export.Transcript{
//	    Conversation: conv,
//	    Messages:     msgs,
//	}, exporter, opts)
package export
