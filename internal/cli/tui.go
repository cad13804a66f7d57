package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/unisale/unichat-go/internal/chat"
	"github.com/unisale/unichat-go/internal/models"
)

// sendTimeout bounds a single message write from the UI.
const sendTimeout = 10 * time.Second

// Theme holds the color scheme for the chat view.
type Theme struct {
	Self    lipgloss.Color
	Peer    lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
	Product lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Self:    lipgloss.Color("#00D787"), // green
	Peer:    lipgloss.Color("#5FAFD7"), // light blue
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
	Product: lipgloss.Color("#D7AF5F"), // amber
}

// Style functions for dynamic theming
func (t Theme) selfStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Self).Bold(true)
}

func (t Theme) peerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Peer).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) headerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Product).Bold(true)
}

// entriesMsg carries a fresh snapshot from the session.
type entriesMsg []chat.Entry

// feedErrMsg carries a live-feed failure.
type feedErrMsg struct {
	err error
}

// sendResultMsg reports the outcome of one send.
type sendResultMsg struct {
	text string
	err  error
}

// chatModel is the bubbletea model for the chat view.
type chatModel struct {
	session *chat.Session
	userID  string
	peer    string
	product string

	input   textinput.Model
	theme   Theme
	entries []chat.Entry
	status  string
	width   int
	height  int
}

// newChatModel creates the chat view model.
func newChatModel(session *chat.Session, userID, peer, product string) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 2000

	return chatModel{
		session: session,
		userID:  userID,
		peer:    peer,
		product: product,
		input:   ti,
		theme:   defaultTheme,
		width:   80,
		height:  24,
	}
}

// Init focuses the input and pulls whatever the session already has.
func (m chatModel) Init() tea.Cmd {
	entries := m.session.Entries()
	return tea.Batch(
		m.input.Focus(),
		func() tea.Msg { return entriesMsg(entries) },
	)
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(msg.Width - 4)
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			text := m.input.Value()
			if strings.TrimSpace(text) == "" {
				// Whitespace never reaches the store.
				return m, nil
			}
			m.input.Reset()
			m.status = ""
			return m, m.sendMessage(text)
		}

	case entriesMsg:
		m.entries = msg
		return m, nil

	case feedErrMsg:
		m.status = m.theme.errorStyle().Render(feedErrorText(msg.err))
		return m, nil

	case sendResultMsg:
		if msg.err != nil {
			// Restore the text so the user can retry without retyping.
			m.input.SetValue(msg.text)
			m.status = m.theme.errorStyle().Render(fmt.Sprintf("✗ not sent: %v", msg.err))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat display.
func (m chatModel) View() tea.View {
	var b strings.Builder

	header := m.theme.headerStyle().Render(fmt.Sprintf("%s · product %s", m.peer, m.product))
	b.WriteString(header + "\n\n")

	// Reserve rows for header, status and input.
	visible := m.height - 5
	if visible < 1 {
		visible = 1
	}
	entries := m.entries
	if len(entries) > visible {
		entries = entries[len(entries)-visible:]
	}
	if len(entries) == 0 {
		b.WriteString(m.theme.hintStyle().Render("No messages yet. Say hi!") + "\n")
	}
	for _, e := range entries {
		b.WriteString(m.renderEntry(e) + "\n")
	}

	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(m.status + "\n")
	}
	b.WriteString(m.input.View())

	return tea.NewView(b.String())
}

// renderEntry formats one message row with its delivery state.
func (m chatModel) renderEntry(e chat.Entry) string {
	name := e.Sender
	style := m.theme.peerStyle()
	if e.Sender == m.userID {
		name = "you"
		style = m.theme.selfStyle()
	}

	switch e.State {
	case models.DeliveryPending:
		return fmt.Sprintf("%s %s %s", style.Render(name+":"), e.Text,
			m.theme.hintStyle().Render("(sending…)"))
	case models.DeliveryFailed:
		return fmt.Sprintf("%s %s %s", style.Render(name+":"), e.Text,
			m.theme.errorStyle().Render("(failed)"))
	default:
		return fmt.Sprintf("%s %s %s", style.Render(name+":"), e.Text,
			m.theme.hintStyle().Render(e.SentAt.Local().Format("15:04")))
	}
}

// sendMessage persists the message off the update loop so typing stays
// responsive.
func (m chatModel) sendMessage(text string) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		return sendResultMsg{text: text, err: session.Send(ctx, text)}
	}
}

// feedErrorText translates feed failures into user-facing wording.
func feedErrorText(err error) string {
	switch {
	case errors.Is(err, chat.ErrPermissionDenied):
		return "✗ you no longer have access to this conversation"
	default:
		return "✗ live updates interrupted; messages may be stale"
	}
}
