// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/ui/styles"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// CONVERSATION ITEM
// =============================================================================

// ConversationItem adapts a conversation to the bubbles list.
type ConversationItem struct {
	Conversation model.Conversation
	Generating   bool
}

// Title implements list.DefaultItem.
func (i ConversationItem) Title() string {
	title := i.Conversation.DisplayName()
	if i.Generating {
		title = "* " + title
	}
	return util.TruncateWidth(title, styles.SidebarWidth-6)
}

// Description implements list.DefaultItem.
func (i ConversationItem) Description() string {
	name := i.Conversation.ModelName()
	if name == "" {
		return "no model"
	}
	return util.TruncateWidth(name, styles.SidebarWidth-6)
}

// FilterValue implements list.Item.
func (i ConversationItem) FilterValue() string {
	return i.Conversation.DisplayName()
}

// ConversationItems converts conversations to list items. generating reports
// whether a conversation has a generation in flight.
func ConversationItems(convs []model.Conversation, generating func(id string) bool) []list.Item {
	items := make([]list.Item, len(convs))
	for i, c := range convs {
		items[i] = ConversationItem{
			Conversation: c,
			Generating:   generating != nil && generating(c.ID),
		}
	}
	return items
}

// =============================================================================
// SIDEBAR LIST
// =============================================================================

// NewSidebarList creates the conversation list with rigchat's colors.
func NewSidebarList(width, height int) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(styles.Purple).
		BorderForeground(styles.Purple)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(styles.TextSecondary).
		BorderForeground(styles.Purple)

	l := list.New(nil, delegate, width, height)
	l.Title = "Chats"
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(styles.TextInverse).
		Background(styles.Purple).
		Padding(0, 1)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	return l
}

// IndexOf returns the position of a conversation in items, or -1.
func IndexOf(items []list.Item, id string) int {
	for i, it := range items {
		if ci, ok := it.(ConversationItem); ok && ci.Conversation.ID == id {
			return i
		}
	}
	return -1
}
