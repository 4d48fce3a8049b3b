// Package inbox is the message list and reader of one mirrored account.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/mailmirror/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/mailmirror/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/mailmirror/internal/core/domain"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driving"
)

// Mode is what the view currently shows.
type Mode int

// Modes.
const (
	ModeList Mode = iota
	ModeDetail
)

// chromeLines are the lines taken by the header, status and help rows.
const chromeLines = 4

// View lists the mirrored messages of an account and opens one at a time.
type View struct {
	styles    *styles.Styles
	accounts  driving.AccountService
	sync      driving.SyncOrchestrator
	accountID string

	mode       Mode
	messages   []domain.MirroredMessage
	table      table.Model
	detail     viewport.Model
	help       help.Model
	keys       keyMap
	unreadOnly bool
	syncing    bool
	status     string
	err        error

	ready  bool
	width  int
	height int
}

// NewView creates the inbox view for accountID.
func NewView(s *styles.Styles, accounts driving.AccountService, sync driving.SyncOrchestrator, accountID string) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	ts := table.DefaultStyles()
	ts.Header = s.Header
	ts.Selected = s.Selected
	t.SetStyles(ts)

	return &View{
		styles:    s,
		accounts:  accounts,
		sync:      sync,
		accountID: accountID,
		table:     t,
		detail:    viewport.New(80, 10),
		help:      help.New(),
		keys:      defaultKeys(),
	}
}

// Init loads the messages.
func (v *View) Init() tea.Cmd {
	return v.load()
}

// Update handles a message.
func (v *View) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.resize(msg.Width, msg.Height)
		return v, nil

	case messages.MessagesLoaded:
		if msg.AccountID != v.accountID {
			return v, nil
		}
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.setMessages(msg.Messages)
		return v, nil

	case messages.MirrorChanged:
		if msg.AccountID != v.accountID {
			return v, nil
		}
		return v, v.load()

	case messages.ActionCompleted:
		if msg.Err != nil {
			v.err = fmt.Errorf("%s %s: %w", msg.Action, msg.MessageID, msg.Err)
			return v, nil
		}
		v.err = nil
		v.status = actionStatus(msg.Action)
		if msg.Action != messages.ActionMarkRead {
			v.mode = ModeList
		}
		return v, v.load()

	case messages.SyncCompleted:
		v.syncing = false
		v.status = syncStatus(msg.Result)
		v.err = nil
		if msg.Result != nil && msg.Result.Err != nil && !msg.Result.Succeeded() {
			v.err = msg.Result.Err
		}
		return v, v.load()

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return v, nil
}

func (v *View) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, v.keys.Quit) {
		return v, tea.Quit
	}

	switch {
	case key.Matches(msg, v.keys.Archive):
		return v, v.act(messages.ActionArchive)
	case key.Matches(msg, v.keys.Trash):
		return v, v.act(messages.ActionTrash)
	case key.Matches(msg, v.keys.Read):
		return v, v.act(messages.ActionMarkRead)
	}

	var cmd tea.Cmd
	if v.mode == ModeDetail {
		if key.Matches(msg, v.keys.Back) {
			v.mode = ModeList
			return v, nil
		}
		v.detail, cmd = v.detail.Update(msg)
		return v, cmd
	}

	switch {
	case key.Matches(msg, v.keys.Open):
		if m := v.selected(); m != nil {
			v.mode = ModeDetail
			v.detail.SetContent(v.renderDetail(m))
			v.detail.GotoTop()
		}
		return v, nil
	case key.Matches(msg, v.keys.Sync):
		if v.syncing || v.sync == nil {
			return v, nil
		}
		v.syncing = true
		v.status = "syncing..."
		return v, v.runSync()
	case key.Matches(msg, v.keys.Unread):
		v.unreadOnly = !v.unreadOnly
		return v, v.load()
	}

	v.table, cmd = v.table.Update(msg)
	return v, cmd
}

// View renders the view.
func (v *View) View() string {
	if !v.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(v.renderHeader())
	b.WriteString("\n")
	switch {
	case v.mode == ModeDetail:
		b.WriteString(v.detail.View())
	case len(v.messages) == 0:
		b.WriteString(v.styles.Muted.Render("No messages."))
	default:
		b.WriteString(v.table.View())
	}
	b.WriteString("\n")
	b.WriteString(v.renderStatus())
	b.WriteString("\n")

	bindings := v.keys.list()
	if v.mode == ModeDetail {
		bindings = v.keys.detail()
	}
	b.WriteString(v.help.ShortHelpView(bindings))
	return b.String()
}

func (v *View) load() tea.Cmd {
	accounts, accountID, unread := v.accounts, v.accountID, v.unreadOnly
	return func() tea.Msg {
		if accounts == nil {
			return messages.ErrorOccurred{Err: errors.New("account service not configured")}
		}
		msgs, err := accounts.Messages(context.Background(), accountID, domain.MessageQuery{UnreadOnly: unread})
		return messages.MessagesLoaded{AccountID: accountID, Messages: msgs, Err: err}
	}
}

func (v *View) act(action messages.Action) tea.Cmd {
	m := v.selected()
	if m == nil || v.accounts == nil {
		return nil
	}
	accounts, accountID, id := v.accounts, v.accountID, m.MessageID
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		switch action {
		case messages.ActionArchive:
			err = accounts.Archive(ctx, accountID, id)
		case messages.ActionTrash:
			err = accounts.Trash(ctx, accountID, id)
		case messages.ActionMarkRead:
			err = accounts.MarkRead(ctx, accountID, id)
		}
		return messages.ActionCompleted{Action: action, MessageID: id, Err: err}
	}
}

func (v *View) runSync() tea.Cmd {
	orchestrator, accountID := v.sync, v.accountID
	return func() tea.Msg {
		return messages.SyncCompleted{Result: orchestrator.RunForAccount(context.Background(), accountID)}
	}
}

func (v *View) selected() *domain.MirroredMessage {
	i := v.table.Cursor()
	if i < 0 || i >= len(v.messages) {
		return nil
	}
	return &v.messages[i]
}

// setMessages replaces the list, keeping the selected message when it survives.
func (v *View) setMessages(msgs []domain.MirroredMessage) {
	var prevID string
	if m := v.selected(); m != nil {
		prevID = m.MessageID
	}

	v.messages = msgs
	rows := make([]table.Row, 0, len(msgs))
	cursor := -1
	for i := range msgs {
		rows = append(rows, toRow(&msgs[i]))
		if msgs[i].MessageID == prevID {
			cursor = i
		}
	}
	v.table.SetRows(rows)

	switch {
	case cursor >= 0:
		v.table.SetCursor(cursor)
	case v.table.Cursor() >= len(msgs):
		v.table.SetCursor(max(len(msgs)-1, 0))
	}

	if v.mode == ModeDetail {
		if cursor < 0 {
			v.mode = ModeList
			return
		}
		v.detail.SetContent(v.renderDetail(&v.messages[cursor]))
	}
}

func (v *View) resize(width, height int) {
	v.ready = true
	v.width = width
	v.height = height

	body := max(height-chromeLines, 3)
	v.table.SetColumns(columns(width))
	v.table.SetHeight(body)
	v.detail.Width = width
	v.detail.Height = body
	v.help.Width = width
}

func (v *View) renderHeader() string {
	count := fmt.Sprintf(" %d messages", len(v.messages))
	if v.unreadOnly {
		count += " (unread only)"
	}
	return v.styles.Title.Render("mailmirror") + " " + v.styles.Subtitle.Render(v.accountID) + v.styles.Muted.Render(count)
}

func (v *View) renderStatus() string {
	if v.err != nil {
		return v.styles.Error.Render(v.err.Error())
	}
	return v.styles.Success.Render(v.status)
}

func (v *View) renderDetail(m *domain.MirroredMessage) string {
	var b strings.Builder
	b.WriteString(v.styles.Subtitle.Render(m.Subject))
	b.WriteString("\n")
	fmt.Fprintf(&b, "From:   %s\n", m.Sender)
	fmt.Fprintf(&b, "Date:   %s\n", m.Date)
	fmt.Fprintf(&b, "Labels: %s\n\n", strings.Join(m.Labels, ", "))
	if m.Malformed {
		b.WriteString(v.styles.Muted.Render("This message could not be parsed."))
		b.WriteString("\n\n")
	}
	body := m.Body
	if body == "" {
		body = m.Snippet
	}
	b.WriteString(lipgloss.NewStyle().Width(max(v.width, 20)).Render(body))
	return b.String()
}

func columns(width int) []table.Column {
	const (
		stateW = 1
		dateW  = 16
		fromW  = 24
	)
	subjectW := max(width-stateW-dateW-fromW-8, 20)
	return []table.Column{
		{Title: " ", Width: stateW},
		{Title: "Date", Width: dateW},
		{Title: "From", Width: fromW},
		{Title: "Subject", Width: subjectW},
	}
}

func toRow(m *domain.MirroredMessage) table.Row {
	state := " "
	if !m.IsRead {
		state = "●"
	}
	return table.Row{state, m.Date, m.Sender, m.Subject}
}

func actionStatus(a messages.Action) string {
	switch a {
	case messages.ActionArchive:
		return "archived"
	case messages.ActionTrash:
		return "moved to trash"
	case messages.ActionMarkRead:
		return "marked as read"
	}
	return string(a)
}

func syncStatus(r *domain.SyncResult) string {
	if r == nil {
		return "sync finished"
	}
	switch r.Outcome {
	case domain.OutcomeSuccess:
		return fmt.Sprintf("synced (%s): %d updated, %d removed, %d new",
			r.Mode, r.Upserted, r.Deleted, len(r.NewMessages))
	case domain.OutcomeBusy:
		return "sync already running"
	case domain.OutcomeDisabled:
		return "sync is disabled"
	}
	return "sync " + string(r.Outcome)
}
