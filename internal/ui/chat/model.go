// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	core "github.com/jeranaias/rigchat/internal/chat"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/ui/components"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// renderInterval is the minimum time between two transcript redraws.
const renderInterval = 33 * time.Millisecond

// Conversations is the conversation list edited from the sidebar.
// storage.Store implements it.
type Conversations interface {
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	CreateConversation(ctx context.Context, name, modelName string) (model.Conversation, error)
	RenameConversation(ctx context.Context, id, name string) error
	DeleteConversation(ctx context.Context, id string) error
}

// Options configure the chat screen.
type Options struct {
	// Theme is "auto", "dark" or "light".
	Theme string

	// RenderMarkdown renders completed responses with glamour.
	RenderMarkdown bool

	// DefaultModel is bound to chats created with ctrl+n.
	DefaultModel string

	Logger zerolog.Logger
}

// =============================================================================
// CHAT MODEL
// =============================================================================

type focusArea int

const (
	focusSidebar focusArea = iota
	focusInput
)

type dialogKind int

const (
	dialogNone dialogKind = iota
	dialogRename
	dialogDelete
)

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	ctx   context.Context
	coord *core.Coordinator
	convs Conversations
	opts  Options
	log   zerolog.Logger

	// Styling
	theme      *styles.Theme
	keys       KeyMap
	transcript *components.Transcript
	status     *components.StatusLine

	// Widgets
	sidebar  list.Model
	viewport viewport.Model
	input    textarea.Model
	rename   textinput.Model
	spinner  spinner.Model

	conversations []model.Conversation
	focus         focusArea
	dialog        dialogKind
	dialogTarget  model.Conversation

	// err is the last failed user action, shown until the next one succeeds.
	err error

	// Dimensions
	width  int
	height int
	ready  bool

	// Redraw state
	limiter       *rate.Limiter
	renderPending bool
	followTail    bool
	spinning      bool

	pump   *pump
	unsubs []func()
}

// New creates the chat screen and subscribes it to the coordinator. Call
// Close to unsubscribe.
func New(ctx context.Context, coord *core.Coordinator, convs Conversations, opts Options) *Model {
	theme := styles.NewTheme(opts.Theme)
	md := components.NewMarkdown(theme.GlamourStyle())
	md.SetEnabled(opts.RenderMarkdown)

	keys := DefaultKeyMap()

	input := textarea.New()
	input.Placeholder = "Type a message..."
	input.ShowLineNumbers = false
	input.Prompt = ""
	input.CharLimit = 0
	input.SetHeight(3)
	input.KeyMap.InsertNewline = keys.Newline

	rename := textinput.New()
	rename.Placeholder = model.DefaultConversationName
	rename.CharLimit = 80

	spin := spinner.New(spinner.WithSpinner(spinner.Dot))
	spin.Style = theme.StatusPending

	m := &Model{
		ctx:        ctx,
		coord:      coord,
		convs:      convs,
		opts:       opts,
		log:        opts.Logger.With().Str("component", "tui").Logger(),
		theme:      theme,
		keys:       keys,
		transcript: components.NewTranscript(theme, md),
		status:     components.NewStatusLine(theme),
		sidebar:    components.NewSidebarList(styles.SidebarWidth-4, 10),
		viewport:   viewport.New(40, 10),
		input:      input,
		rename:     rename,
		spinner:    spin,
		focus:      focusSidebar,
		limiter:    rate.NewLimiter(rate.Every(renderInterval), 1),
		pump:       newPump(),
	}
	m.viewport.KeyMap = viewport.KeyMap{
		PageUp:   keys.PageUp,
		PageDown: keys.PageDown,
	}

	m.unsubs = append(m.unsubs,
		coord.Store().Subscribe(func(core.Change) { m.pump.raise(sigTranscript) }),
		coord.Scroll().Subscribe(func(core.ScrollIntent) { m.pump.raise(sigScroll) }),
		coord.OnStatus(func() { m.pump.raise(sigStatus) }),
		coord.OnFocus(func() { m.pump.raise(sigFocus) }),
		coord.OnGeneration(func(core.GenerationChange) { m.pump.raise(sigSidebar | sigStatus) }),
	)
	return m
}

// Init loads the conversation list.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadConversations(""), textarea.Blink)
}

// Close unsubscribes from the coordinator and stops the signal pump.
func (m *Model) Close() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
	m.pump.close()
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m *Model) loadConversations(selectID string) tea.Cmd {
	return func() tea.Msg {
		convs, err := m.convs.ListConversations(m.ctx)
		return conversationsLoadedMsg{convs: convs, selectID: selectID, err: err}
	}
}

func (m *Model) createConversation() tea.Cmd {
	current := m.conversations
	return func() tea.Msg {
		conv, err := m.convs.CreateConversation(m.ctx, "", m.opts.DefaultModel)
		if err != nil {
			return conversationsLoadedMsg{convs: current, err: err}
		}
		convs, err := m.convs.ListConversations(m.ctx)
		return conversationsLoadedMsg{convs: convs, selectID: conv.ID, err: err}
	}
}

func (m *Model) renameConversation(id, name string) tea.Cmd {
	current := m.conversations
	return func() tea.Msg {
		if err := m.convs.RenameConversation(m.ctx, id, name); err != nil {
			return conversationsLoadedMsg{convs: current, err: err}
		}
		convs, err := m.convs.ListConversations(m.ctx)
		return conversationsLoadedMsg{convs: convs, err: err}
	}
}

func (m *Model) deleteConversation(id string) tea.Cmd {
	current := m.conversations
	return func() tea.Msg {
		if err := m.convs.DeleteConversation(m.ctx, id); err != nil {
			return conversationsLoadedMsg{convs: current, err: err}
		}
		convs, err := m.convs.ListConversations(m.ctx)
		return conversationsLoadedMsg{convs: convs, err: err}
	}
}

// selectConversation runs the coordinator selection off the Update loop,
// since it reads the transcript from storage.
func (m *Model) selectConversation(conv model.Conversation) tea.Cmd {
	return func() tea.Msg {
		return selectedMsg{conv: conv, err: m.coord.Select(m.ctx, conv)}
	}
}

// =============================================================================
// STATE HELPERS
// =============================================================================

// busy reports whether the spinner has something to show.
func (m *Model) busy() bool {
	if _, ok := m.coord.Active(); !ok {
		return false
	}
	return m.coord.ConnectionState() == model.ConnectionChecking ||
		m.coord.GenerationState() == model.GenerationGenerating
}

func (m *Model) startSpinner() tea.Cmd {
	if m.spinning || !m.busy() {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

func (m *Model) isGenerating(id string) bool {
	ctrl, ok := m.coord.Controller(id)
	return ok && ctrl.State() == model.GenerationGenerating
}

func (m *Model) refreshSidebar() {
	index := m.sidebar.Index()
	items := components.ConversationItems(m.conversations, m.isGenerating)
	m.sidebar.SetItems(items)
	if index >= len(items) {
		index = len(items) - 1
	}
	if index >= 0 {
		m.sidebar.Select(index)
	}
}

func (m *Model) refreshTranscript() {
	m.transcript.Spinner = m.spinner.View()
	m.viewport.SetContent(m.transcript.Render(m.coord.Messages()))
	if m.followTail {
		m.viewport.GotoBottom()
		m.followTail = false
	}
}

// scheduleRender redraws the transcript now if the limiter allows it, and
// otherwise schedules one redraw for when it does.
func (m *Model) scheduleRender() tea.Cmd {
	if m.renderPending {
		return nil
	}
	if m.limiter.Allow() {
		m.refreshTranscript()
		return nil
	}
	m.renderPending = true
	delay := m.limiter.Reserve().Delay()
	return tea.Tick(delay, func(time.Time) tea.Msg { return renderTickMsg{} })
}

func (m *Model) focusInput() tea.Cmd {
	m.focus = focusInput
	return m.input.Focus()
}

func (m *Model) focusSidebar() {
	m.focus = focusSidebar
	m.input.Blur()
}

func (m *Model) selectedConversation() (model.Conversation, bool) {
	item, ok := m.sidebar.SelectedItem().(components.ConversationItem)
	if !ok {
		return model.Conversation{}, false
	}
	return item.Conversation, true
}

// layout sizes the widgets for the current window.
func (m *Model) layout() {
	listHeight := m.height - 2
	if listHeight < 1 {
		listHeight = 1
	}
	m.sidebar.SetSize(styles.SidebarWidth-4, listHeight)

	inner := m.mainWidth() - 1
	if inner < 10 {
		inner = 10
	}
	m.input.SetWidth(inner - 2)
	m.rename.Width = inner - 4
	m.transcript.SetWidth(inner)
	m.status.SetWidth(inner)

	// header (2) + status (1) + input box (5)
	vpHeight := m.height - 8
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = inner
	m.viewport.Height = vpHeight
}

func (m *Model) mainWidth() int {
	return m.width - styles.SidebarWidth
}

// Compile-time check that Model implements tea.Model.
var _ tea.Model = (*Model)(nil)
