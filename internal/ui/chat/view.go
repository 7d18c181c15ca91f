// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/lipgloss"

	core "github.com/jeranaias/rigchat/internal/chat"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/ui/components"
	"github.com/jeranaias/rigchat/internal/ui/styles"
	"github.com/jeranaias/rigchat/internal/util"
)

// View renders the screen.
func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), m.renderMain())
}

func (m *Model) renderSidebar() string {
	style := m.theme.Sidebar
	if m.focus == focusSidebar && m.dialog == dialogNone {
		style = m.theme.SidebarFocused
	}
	return style.
		Width(styles.SidebarWidth - 2).
		Height(m.height - 2).
		Render(m.sidebar.View())
}

func (m *Model) renderMain() string {
	width := m.mainWidth()
	conv, ok := m.coord.Active()
	if !ok {
		return m.renderNoSelection(width)
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(conv),
		m.viewport.View(),
		m.renderStatus(),
		m.renderInput(),
	)
	return m.theme.Main.Width(width).Render(body)
}

func (m *Model) renderNoSelection(width int) string {
	lines := []string{
		m.theme.Title.Render("No Chat Selected"),
		"",
		m.theme.Help.Render("Pick a chat on the left or press ctrl+n to start one."),
	}
	if m.err != nil {
		lines = append(lines, "", m.theme.StatusError.Render(styles.StatusIndicators.Error+" "+m.err.Error()))
	}
	if m.dialog != dialogNone {
		lines = append(lines, "", m.renderDialog())
	}
	return lipgloss.Place(width, m.height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, lines...))
}

// renderHeader shows the conversation name above its model.
func (m *Model) renderHeader(conv model.Conversation) string {
	inner := m.viewport.Width
	title := m.theme.Title.Render(util.TruncateWidth(conv.DisplayName(), inner))

	sub := conv.ModelName()
	if sub == "" {
		sub = m.opts.DefaultModel
	}
	if sub == "" {
		sub = "no model"
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, m.theme.Subtitle.Render(util.TruncateWidth(sub, inner)))
}

func (m *Model) renderStatus() string {
	s := m.status
	s.Spinner = m.spinner.View()
	s.Status, s.Text = m.statusText()
	s.Hints = m.statusHints()
	return s.View()
}

// statusText picks what the status line says, most urgent first.
func (m *Model) statusText() (components.Status, string) {
	if m.err != nil {
		return components.StatusError, m.err.Error()
	}

	notice := m.coord.Notice()
	switch notice.Kind {
	case core.NoticeChecking:
		return components.StatusChecking, notice.Text
	case core.NoticeConnectionError:
		return components.StatusError, notice.Text
	case core.NoticeModelUnavailable:
		return components.StatusWarning, notice.Text
	case core.NoticeGenerationFailed:
		return components.StatusError, notice.Text
	}

	if m.coord.GenerationState() == model.GenerationGenerating {
		return components.StatusGenerating, "Generating..."
	}
	return components.ConnectionStatus(m.coord.ConnectionState())
}

func (m *Model) statusHints() []components.Hint {
	k := m.keys
	var out []components.Hint
	if m.coord.ConnectionState() == model.ConnectionError {
		out = append(out, hints(k.Retry)...)
	}
	if m.focus == focusSidebar {
		return append(out, hints(k.Open, k.Rename, k.Delete, k.NextFocus, k.NewChat, k.Quit)...)
	}
	return append(out, hints(k.Submit, k.Newline, k.NextFocus, k.NewChat, k.Quit)...)
}

func (m *Model) renderInput() string {
	if m.dialog != dialogNone {
		return m.renderDialog()
	}

	switch {
	case !m.coord.IsInputAllowed():
		return m.theme.InputDisabled.Render(m.input.View())
	case m.focus == focusInput:
		return m.theme.InputFocused.Render(m.input.View())
	default:
		return m.theme.Input.Render(m.input.View())
	}
}

func (m *Model) renderDialog() string {
	name := util.TruncateWidth(m.dialogTarget.DisplayName(), 40)
	var body string
	switch m.dialog {
	case dialogRename:
		body = lipgloss.JoinVertical(lipgloss.Left,
			m.theme.DialogTitle.Render("Rename \""+name+"\""),
			m.rename.View(),
			m.theme.Help.Render("enter save  esc cancel"),
		)
	case dialogDelete:
		body = lipgloss.JoinVertical(lipgloss.Left,
			m.theme.DialogTitle.Render("Delete \""+name+"\"?"),
			m.theme.Help.Render("y delete  n keep"),
		)
	}
	return m.theme.Dialog.Render(body)
}
