package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/secretary-go/internal/dialog"
)

// Theme holds the color scheme for the chat console.
type Theme struct {
	Patient   lipgloss.Color
	Assistant lipgloss.Color
	Error     lipgloss.Color
	Hint      lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Patient:   lipgloss.Color("#5FAFD7"), // light blue
	Assistant: lipgloss.Color("#00D787"), // green
	Error:     lipgloss.Color("#FF005F"), // red
	Hint:      lipgloss.Color("#6C6C6C"), // dim gray
}

// Style functions for dynamic theming
func (t Theme) patientStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Patient).Bold(true)
}

func (t Theme) assistantStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Assistant)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

var chatPhone string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant from the terminal",
	Long: `Chat opens an interactive console that drives the conversation
pipeline directly, without going through the HTTP server.

Each line you type is handled as one inbound message. Use --phone to
continue an existing conversation instead of starting a fresh one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, err := buildEngine(cmd.Context())
		if err != nil {
			return err
		}

		phone := chatPhone
		if phone == "" {
			phone = "console:" + uuid.NewString()
		}

		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return chatStdin(cmd.Context(), engine, phone)
		}

		m := newChatModel(engine, phone)
		_, err = tea.NewProgram(m).Run()
		return err
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatPhone, "phone", "", "channel identity to converse as (default: a fresh console identity)")
}

// chatStdin is the non-TTY fallback: read lines, print replies.
func chatStdin(ctx context.Context, engine *dialog.Engine, phone string) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		reply, err := engine.Handle(ctx, phone, text)
		if err != nil {
			return err
		}
		if reply != "" {
			fmt.Println(reply)
		}
	}
	return scanner.Err()
}

// chatLine is one rendered transcript entry.
type chatLine struct {
	role string // "patient" or "assistant"
	text string
}

// replyMsg carries the assistant's answer for one turn.
type replyMsg struct {
	reply string
	err   error
}

// chatModel is the bubbletea model for the interactive console.
type chatModel struct {
	engine   *dialog.Engine
	phone    string
	input    textinput.Model
	lines    []chatLine
	theme    Theme
	waiting  bool
	quitting bool
	err      error
}

// newChatModel creates a new chat model.
func newChatModel(engine *dialog.Engine, phone string) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message and press Enter"

	return chatModel{
		engine: engine,
		phone:  phone,
		input:  ti,
		theme:  defaultTheme,
	}
}

// Init focuses the input field.
func (m chatModel) Init() tea.Cmd {
	return m.input.Focus()
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if m.waiting {
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.lines = append(m.lines, chatLine{role: "patient", text: text})
			m.waiting = true
			return m, m.sendTurn(text)
		}

	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		if msg.reply == "" {
			// Conversation is with a human attendant; the assistant stays quiet.
			m.lines = append(m.lines, chatLine{role: "hint", text: "(waiting for a human attendant)"})
		} else {
			m.lines = append(m.lines, chatLine{role: "assistant", text: msg.reply})
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// sendTurn runs one conversation turn off the UI loop.
func (m chatModel) sendTurn(text string) tea.Cmd {
	engine, phone := m.engine, m.phone
	return func() tea.Msg {
		reply, err := engine.Handle(context.Background(), phone, text)
		return replyMsg{reply: reply, err: err}
	}
}

// View renders the transcript and the input prompt.
func (m chatModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m chatModel) renderContent() string {
	var b strings.Builder

	b.WriteString(m.theme.hintStyle().Render(fmt.Sprintf("Conversing as %s. Esc or Ctrl+C to leave.", m.phone)))
	b.WriteString("\n\n")

	for _, line := range m.lines {
		switch line.role {
		case "patient":
			b.WriteString(m.theme.patientStyle().Render("you> ") + line.text)
		case "assistant":
			b.WriteString(m.theme.assistantStyle().Render(line.text))
		default:
			b.WriteString(m.theme.hintStyle().Render(line.text))
		}
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(m.theme.errorStyle().Render(fmt.Sprintf("\n✗ %s\n", m.err)))
		return b.String()
	}

	if m.waiting {
		b.WriteString(m.theme.hintStyle().Render("...") + "\n")
	} else if !m.quitting {
		b.WriteString("\n" + m.input.View() + "\n")
	}

	return b.String()
}
