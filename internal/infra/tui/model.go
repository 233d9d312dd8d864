package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"marketchat/internal/app/chatsync"
	"marketchat/internal/app/policies"
	"marketchat/internal/app/schedule"
	"marketchat/internal/domain/chat"
)

const (
	toastTTL     = 5 * time.Second
	eventBuffer  = 64
	actionWindow = 15 * time.Second

	actionStart             = "start"
	actionStartConversation = "start_conversation"
)

type focus int

const (
	focusList focus = iota
	focusThread
)

type storeEventMsg struct{ ev chatsync.Event }

type toastMsg struct{ n policies.Notification }

type toastExpiredMsg struct{ seq int }

type actionDoneMsg struct {
	action string
	err    error
}

type convItem struct {
	conv chat.Conversation
}

func (i convItem) Title() string {
	name := i.conv.DisplayName("Cineva")
	if i.conv.UnreadCount > 0 {
		return fmt.Sprintf("%s (%d)", name, i.conv.UnreadCount)
	}
	return name
}

func (i convItem) Description() string {
	parts := make([]string, 0, 2)
	if i.conv.AdTitle != "" {
		parts = append(parts, i.conv.AdTitle)
	}
	if i.conv.LastMessage != "" {
		parts = append(parts, i.conv.LastMessage)
	}
	return strings.Join(parts, " · ")
}

func (i convItem) FilterValue() string { return i.conv.DisplayName("") + " " + i.conv.AdTitle }

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	badgeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("9")).Padding(0, 1)
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	toastStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11")).Padding(0, 1)
	mineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	theirsStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	pendingStyle = lipgloss.NewStyle().Faint(true)
	hintStyle    = lipgloss.NewStyle().Faint(true)
)

// Model is the bubbletea view over a chatsync.Store.
type Model struct {
	store  *chatsync.Store
	ctx    context.Context
	events chan chatsync.Event
	toasts <-chan policies.Notification

	width  int
	height int
	focus  focus

	list   list.Model
	thread viewport.Model
	input  textinput.Model

	toast    string
	toastSeq int
	err      error

	// listing to open a conversation about once the store is running
	startAdID       string
	startReceiverID string
}

// New builds the model and subscribes it to store events. toasts may be nil.
func New(ctx context.Context, store *chatsync.Store, toasts <-chan policies.Notification) *Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Mesaje"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	in := textinput.New()
	in.Placeholder = "Scrie un mesaj..."
	in.CharLimit = 2000

	m := &Model{
		store:  store,
		ctx:    ctx,
		events: make(chan chatsync.Event, eventBuffer),
		toasts: toasts,
		list:   l,
		thread: viewport.New(0, 0),
		input:  in,
	}
	store.Subscribe(m.forward)
	return m
}

// forward runs on store goroutines. With a full buffer render-only events are
// dropped, since the next one re-renders from store state; send failures carry
// the error shown to the user and wait for room instead.
func (m *Model) forward(ev chatsync.Event) {
	if ev.Kind == chatsync.EventSendFailed {
		select {
		case m.events <- ev:
		case <-m.ctx.Done():
		}
		return
	}
	select {
	case m.events <- ev:
	default:
	}
}

// OpenListing makes the model start a conversation with the seller of adID
// right after the store starts, like the "message seller" action of a listing.
func (m *Model) OpenListing(adID, receiverID string) *Model {
	m.startAdID, m.startReceiverID = adID, receiverID
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.waitForToast(), m.startCmd())
}

func (m *Model) startCmd() tea.Cmd {
	if m.startAdID == "" {
		return m.run(actionStart, m.store.Start)
	}
	adID, receiverID := m.startAdID, m.startReceiverID
	return m.run(actionStartConversation, func(ctx context.Context) error {
		// StartConversation refreshes the list itself; a failed first refresh
		// is already logged by the store
		if err := m.store.Start(ctx); errors.Is(err, schedule.ErrStopped) {
			return err
		}
		return m.store.StartConversation(ctx, adID, receiverID)
	})
}

// showToast displays text until toastTTL passes or a newer toast replaces it.
func (m *Model) showToast(text string) tea.Cmd {
	m.toastSeq++
	seq := m.toastSeq
	m.toast = text
	return tea.Tick(toastTTL, func(time.Time) tea.Msg { return toastExpiredMsg{seq: seq} })
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.events:
			return storeEventMsg{ev: ev}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) waitForToast() tea.Cmd {
	if m.toasts == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case n := <-m.toasts:
			return toastMsg{n: n}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// run executes a store call off the UI goroutine.
func (m *Model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, actionWindow)
		defer cancel()
		return actionDoneMsg{action: action, err: fn(ctx)}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	case storeEventMsg:
		m.apply(msg.ev)
		return m, m.waitForEvent()
	case toastMsg:
		expire := m.showToast(msg.n.Title + ": " + msg.n.Body)
		return m, tea.Batch(m.waitForToast(), expire)
	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil
	case actionDoneMsg:
		if msg.action == actionStartConversation {
			if msg.err != nil {
				return m, m.showToast("Nu am putut porni conversația: " + msg.err.Error())
			}
			m.focus = focusThread
			m.input.Focus()
			return m, nil
		}
		// send failures arrive as EventSendFailed; other errors surface here
		if msg.err != nil && msg.action != "send" && msg.action != "retry" {
			m.err = msg.err
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.store.Close()
			return m, tea.Quit
		}
		if m.focus == focusThread {
			return m.updateThread(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m *Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() != list.Filtering {
		switch msg.String() {
		case "q":
			m.store.Close()
			return m, tea.Quit
		case "enter":
			it, ok := m.list.SelectedItem().(convItem)
			if !ok {
				return m, nil
			}
			id := it.conv.ID
			m.err = nil
			m.focus = focusThread
			m.input.Focus()
			return m, m.run("select", func(ctx context.Context) error { return m.store.Select(ctx, id) })
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) updateThread(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.focus = focusList
		m.input.Blur()
		m.input.Reset()
		m.err = nil
		m.store.Deselect()
		return m, nil
	case "enter":
		id := m.store.Selected()
		text := m.input.Value()
		if strings.TrimSpace(text) == "" || id == "" {
			return m, nil
		}
		return m, m.run("send", func(ctx context.Context) error {
			_, err := m.store.Send(ctx, id, text)
			return err
		})
	case "ctrl+r":
		failed, ok := lastFailed(m.store.Messages())
		if !ok {
			return m, nil
		}
		m.err = nil
		return m, m.run("retry", func(ctx context.Context) error {
			_, err := m.store.Retry(ctx, failed.ID)
			return err
		})
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.thread, cmd = m.thread.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) apply(ev chatsync.Event) {
	switch ev.Kind {
	case chatsync.EventConversations:
		m.reloadList()
	case chatsync.EventSelection:
		m.reloadList()
		m.renderThread()
	case chatsync.EventMessageAppended:
		m.input.Reset()
		m.reloadList()
		m.renderThread()
	case chatsync.EventThread:
		m.renderThread()
	case chatsync.EventSendFailed:
		m.err = fmt.Errorf("mesajul nu a fost trimis (ctrl+r pentru reîncercare): %w", ev.Err)
		m.renderThread()
	}
}

func (m *Model) reloadList() {
	convs := m.store.Conversations()
	items := make([]list.Item, 0, len(convs))
	for _, c := range convs {
		items = append(items, convItem{conv: c})
	}
	m.list.SetItems(items)
}

func (m *Model) renderThread() {
	self := m.store.Session().UserID
	other := m.store.OtherUser().Name
	if other == "" {
		other = "Cineva"
	}
	var b strings.Builder
	for _, msg := range m.store.Messages() {
		b.WriteString(renderMessage(msg, self, other))
		b.WriteString("\n")
	}
	m.thread.SetContent(b.String())
	m.thread.GotoBottom()
}

func renderMessage(msg chat.Message, self, other string) string {
	stamp := msg.CreatedAt.Local().Format("15:04")
	if msg.SenderID != self {
		return theirsStyle.Render(other) + " " + hintStyle.Render(stamp) + "  " + msg.Content
	}
	line := mineStyle.Render("Tu") + " " + hintStyle.Render(stamp) + "  " + msg.Content
	switch msg.Delivery {
	case chat.DeliveryPending:
		return pendingStyle.Render(line + " …")
	case chat.DeliveryFailed:
		return line + " " + errStyle.Render("✗")
	}
	return line
}

func lastFailed(msgs []chat.Message) (chat.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Delivery == chat.DeliveryFailed {
			return msgs[i], true
		}
	}
	return chat.Message{}, false
}

func (m *Model) SetSize(w, h int) {
	m.width, m.height = w, h
	m.list.SetSize(w, h-2)
	m.thread.Width = w
	m.thread.Height = max(h-5, 1)
	m.input.Width = max(w-4, 10)
}

func (m *Model) header() string {
	title := titleStyle.Render("marketchat")
	if n := m.store.TotalUnread(); n > 0 {
		title += " " + badgeStyle.Render(fmt.Sprintf("%d necitite", n))
	}
	return title
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	if m.focus == focusThread {
		conv, _ := m.store.Conversation(m.store.Selected())
		b.WriteString(titleStyle.Render(m.store.OtherUser().Name))
		if conv.AdTitle != "" {
			b.WriteString(hintStyle.Render(" · " + conv.AdTitle))
		}
		b.WriteString("\n")
		b.WriteString(m.thread.View())
		b.WriteString("\n")
		b.WriteString(m.input.View())
	} else {
		b.WriteString(m.list.View())
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errStyle.Render(m.err.Error()))
	}
	if m.toast != "" {
		b.WriteString("\n")
		b.WriteString(toastStyle.Render(m.toast))
	}
	return b.String()
}
