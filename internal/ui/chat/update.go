// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/ui/components"
)

// Update handles Bubble Tea messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case conversationsLoadedMsg:
		return m, m.handleConversations(msg)

	case selectedMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		m.followTail = true
		m.refreshTranscript()
		return m, m.startSpinner()

	case signalMsg:
		return m, m.handleSignal(msg)

	case renderTickMsg:
		m.renderPending = false
		m.refreshTranscript()
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, tea.Batch(cmd, m.scheduleRender())
	}

	// Cursor blink and other widget messages.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// CORE SIGNALS
// =============================================================================

func (m *Model) handleSignal(msg signalMsg) tea.Cmd {
	var cmds []tea.Cmd
	if msg.has(sigFocus) && m.dialog == dialogNone {
		cmds = append(cmds, m.focusInput())
	}
	if msg.has(sigSidebar) {
		m.refreshSidebar()
	}
	if msg.has(sigScroll) {
		m.followTail = true
	}
	if msg.has(sigTranscript) || msg.has(sigScroll) {
		cmds = append(cmds, m.scheduleRender())
	}
	cmds = append(cmds, m.startSpinner())
	return tea.Batch(cmds...)
}

// =============================================================================
// CONVERSATION LIST
// =============================================================================

func (m *Model) handleConversations(msg conversationsLoadedMsg) tea.Cmd {
	if msg.err != nil {
		m.log.Error().Err(msg.err).Msg("conversation list update failed")
		m.err = msg.err
	}
	if msg.convs == nil && msg.err != nil {
		return nil
	}

	m.conversations = msg.convs
	m.refreshSidebar()

	// Keep the active conversation's name in sync after a rename, and drop
	// it if it was deleted.
	if active, ok := m.coord.Active(); ok {
		idx := components.IndexOf(m.sidebar.Items(), active.ID)
		if idx < 0 {
			m.coord.Deselect()
		} else if name := m.conversations[idx].Name; name != active.Name {
			active.Name = name
			m.coord.UpdateActive(active)
		}
	}

	if msg.selectID == "" {
		return nil
	}
	idx := components.IndexOf(m.sidebar.Items(), msg.selectID)
	if idx < 0 {
		return nil
	}
	m.sidebar.Select(idx)
	m.err = nil
	return m.selectConversation(m.conversations[idx])
}

// =============================================================================
// KEYS
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.dialog != dialogNone {
		return m.handleDialogKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit

	case key.Matches(msg, m.keys.NextFocus):
		if m.focus == focusInput {
			m.focusSidebar()
			return nil
		}
		if _, ok := m.coord.Active(); ok {
			return m.focusInput()
		}
		return nil

	case key.Matches(msg, m.keys.NewChat):
		return m.createConversation()

	case key.Matches(msg, m.keys.Retry):
		if _, ok := m.coord.Active(); !ok {
			return nil
		}
		m.err = nil
		m.coord.Retry()
		return nil

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m *Model) handleSidebarKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Open):
		conv, ok := m.selectedConversation()
		if !ok {
			return nil
		}
		m.err = nil
		return m.selectConversation(conv)

	case key.Matches(msg, m.keys.Rename):
		conv, ok := m.selectedConversation()
		if !ok {
			return nil
		}
		m.dialog = dialogRename
		m.dialogTarget = conv
		m.rename.SetValue(conv.Name)
		m.rename.CursorEnd()
		return m.rename.Focus()

	case key.Matches(msg, m.keys.Delete):
		conv, ok := m.selectedConversation()
		if !ok {
			return nil
		}
		m.dialog = dialogDelete
		m.dialogTarget = conv
		return nil
	}

	var cmd tea.Cmd
	m.sidebar, cmd = m.sidebar.Update(msg)
	return cmd
}

func (m *Model) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Submit) {
		return m.submit()
	}
	// A disabled prompt ignores typing.
	if !m.coord.IsInputAllowed() {
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// submit sends the prompt and clears the field before returning, so the
// next keystroke never lands in the old prompt.
func (m *Model) submit() tea.Cmd {
	prompt := m.input.Value()
	if !m.coord.IsSendAllowed(prompt) {
		return nil
	}
	if _, err := m.coord.Submit(m.ctx, prompt); err != nil {
		m.log.Warn().Err(err).Msg("submit rejected")
		m.err = err
		return nil
	}
	m.input.Reset()
	m.err = nil
	m.followTail = true
	m.refreshTranscript()
	m.refreshSidebar()
	return m.startSpinner()
}

// =============================================================================
// DIALOGS
// =============================================================================

func (m *Model) handleDialogKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		return tea.Quit
	}

	switch m.dialog {
	case dialogRename:
		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.closeDialog()
			return nil
		case key.Matches(msg, m.keys.Confirm):
			id := m.dialogTarget.ID
			name := strings.TrimSpace(m.rename.Value())
			m.closeDialog()
			return m.renameConversation(id, name)
		}
		var cmd tea.Cmd
		m.rename, cmd = m.rename.Update(msg)
		return cmd

	case dialogDelete:
		switch {
		case key.Matches(msg, m.keys.Yes):
			id := m.dialogTarget.ID
			m.closeDialog()
			if active, ok := m.coord.Active(); ok && active.ID == id {
				m.coord.Deselect()
				m.focusSidebar()
			}
			return m.deleteConversation(id)
		case key.Matches(msg, m.keys.No):
			m.closeDialog()
		}
	}
	return nil
}

func (m *Model) closeDialog() {
	m.dialog = dialogNone
	m.dialogTarget = model.Conversation{}
	m.rename.Blur()
	m.rename.Reset()
}
