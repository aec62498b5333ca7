package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/RenatoUtsch/redes-tp3/client"
	"github.com/RenatoUtsch/redes-tp3/logger"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive <ip:port>",
	Short: "Start an interactive lookup client",
	Long: `Start a terminal UI that looks up keys through a servent.

Type a key and press Enter to flood a lookup. Answers are listed per lookup
together with the servent that sent them.

Keyboard shortcuts:
  Enter      - Look up the typed key (repeats the last key when empty)
  ↑/↓        - Scroll logs
  Esc        - Clear the input
  Ctrl+C     - Quit

Examples:
  servent interactive 127.0.0.1:9000`,
	Args: cobra.ExactArgs(1),
	RunE: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
	interactiveCmd.Flags().DurationVarP(&clientTimeout, "timeout", "t", client.DefaultTimeout, "How long to wait for each answer")
}

const (
	logCount   = 10
	maxLookups = 8
)

// lookupRecord is one key typed by the user and what came back for it.
type lookupRecord struct {
	key     string
	results []client.Result
	err     error
	pending bool
	took    time.Duration
}

type model struct {
	client    *client.Client
	input     string
	lastKey   string
	lookups   []lookupRecord // newest last
	logBuffer *logger.LogBuffer
	logScroll int // for scrolling logs
	width     int
	height    int
	quitting  bool
}

func initialModel(c *client.Client) model {
	// Logs only go to the buffer shown in the log panel
	logBuffer := logger.GetGlobalLogBuffer()
	_ = logger.AddOutput(logger.NewLogBufferWriter(logBuffer))

	return model{
		client:    c,
		logBuffer: logBuffer,
	}
}

func (m model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

type tickMsg struct{}

// lookupResultMsg carries one answer as it arrives. events yields the rest of
// the lookup.
type lookupResultMsg struct {
	index  int
	result client.Result
	events <-chan tea.Msg
}

type lookupDoneMsg struct {
	index   int
	results []client.Result
	err     error
	took    time.Duration
}

// runLookup floods key in the background. Each answer is delivered as a
// lookupResultMsg and the lookup ends with a lookupDoneMsg.
func runLookup(c *client.Client, index int, key string) tea.Cmd {
	return func() tea.Msg {
		events := make(chan tea.Msg, 16)
		go func() {
			defer close(events)
			start := time.Now()
			results, err := c.Lookup(context.Background(), key, func(r client.Result) {
				events <- lookupResultMsg{index: index, result: r, events: events}
			})
			events <- lookupDoneMsg{index: index, results: results, err: err, took: time.Since(start)}
		}()
		return <-events
	}
}

// waitForLookup delivers the next event of a running lookup.
func waitForLookup(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

// busy reports whether the last lookup is still collecting answers.
func (m model) busy() bool {
	return len(m.lookups) > 0 && m.lookups[len(m.lookups)-1].pending
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case tea.KeyEnter:
			// One lookup at a time; the typed key stays in the input
			if m.busy() {
				return m, nil
			}
			key := m.input
			if key == "" {
				key = m.lastKey
			}
			if key == "" {
				return m, nil
			}
			m.input = ""
			m.lastKey = key
			m.lookups = append(m.lookups, lookupRecord{key: key, pending: true})
			logger.Infof("Querying servents for key %q", key)
			return m, runLookup(m.client, len(m.lookups)-1, key)

		case tea.KeyEsc:
			m.input = ""
			return m, nil

		case tea.KeyBackspace:
			if r := []rune(m.input); len(r) > 0 {
				m.input = string(r[:len(r)-1])
			}
			return m, nil

		case tea.KeySpace:
			m.input += " "
			return m, nil

		case tea.KeyRunes:
			m.input += string(msg.Runes)
			return m, nil

		case tea.KeyUp:
			// Scroll logs up (show older logs)
			maxScroll := m.logBuffer.Len() - logCount
			if maxScroll < 0 {
				maxScroll = 0
			}
			if m.logScroll < maxScroll {
				m.logScroll++
			}
			return m, nil

		case tea.KeyDown:
			// Scroll logs down (show newer logs)
			if m.logScroll > 0 {
				m.logScroll--
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tick()

	case lookupResultMsg:
		if msg.index < len(m.lookups) {
			rec := &m.lookups[msg.index]
			rec.results = append(rec.results, msg.result)
		}
		return m, waitForLookup(msg.events)

	case lookupDoneMsg:
		if msg.index < len(m.lookups) {
			rec := &m.lookups[msg.index]
			rec.pending = false
			rec.results = msg.results
			rec.err = msg.err
			rec.took = msg.took
		}
		return m, nil
	}

	return m, nil
}

// visibleLookups returns the most recent lookups, oldest first.
func (m model) visibleLookups() []lookupRecord {
	if len(m.lookups) <= maxLookups {
		return m.lookups
	}
	return m.lookups[len(m.lookups)-maxLookups:]
}

// visibleLogs returns the log lines to show, newest first.
func (m model) visibleLogs() []string {
	entries := m.logBuffer.GetAll()
	if len(entries) == 0 {
		return []string{"     | (no logs yet)"}
	}

	end := len(entries) - m.logScroll
	if end < 0 {
		end = 0
	}
	start := end - logCount
	if start < 0 {
		start = 0
	}

	lines := make([]string, 0, end-start)
	for i := end - 1; i >= start; i-- {
		// Line number: most recent = 0
		lines = append(lines, fmt.Sprintf("%4d | %s", len(entries)-1-i, logger.FormatLogEntry(entries[i])))
	}
	return lines
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder

	// Title
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Padding(1, 2)
	s.WriteString(titleStyle.Render(fmt.Sprintf("Servent Lookup (%s)", m.client.Server())))
	s.WriteString("\n\n")

	// Lookups
	keyStyle := lipgloss.NewStyle().Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	if len(m.lookups) == 0 {
		s.WriteString("No lookups yet.\n\n")
	}
	for _, rec := range m.visibleLookups() {
		s.WriteString(keyStyle.Render(rec.key))
		switch {
		case rec.pending:
			s.WriteString(dimStyle.Render("  waiting for answers..."))
		case rec.err != nil:
			s.WriteString(errorStyle.Render(fmt.Sprintf("  Error: %v", rec.err)))
		default:
			s.WriteString(dimStyle.Render(fmt.Sprintf("  %d answer(s) in %s", len(rec.results), rec.took.Round(time.Millisecond))))
		}
		s.WriteString("\n")
		for _, r := range rec.results {
			s.WriteString(fmt.Sprintf("    %s\n", r))
		}
	}
	s.WriteString("\n")

	// Input
	promptStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true)
	s.WriteString(promptStyle.Render("-- Key: "))
	s.WriteString(m.input)
	s.WriteString("█\n\n")

	// Logs section
	boxWidth := 100
	if m.width > 0 {
		boxWidth = m.width - 4 // Leave some margin
	}

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Height(logCount + 1).
		Width(boxWidth)

	s.WriteString(logStyle.Render("Logs:\n" + strings.Join(m.visibleLogs(), "\n")))
	s.WriteString("\n\n")

	// Instructions
	instructionsStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	instructionText := "Enter to look up"
	if m.busy() {
		instructionText = "Waiting for answers"
	}
	if m.lastKey != "" {
		instructionText += fmt.Sprintf(" (empty repeats %q)", m.lastKey)
	}
	instructionText += " | ↑/↓ to scroll logs | Esc to clear | Ctrl+C to quit"
	s.WriteString(instructionsStyle.Render(instructionText))

	return s.String()
}

func runInteractive(cmd *cobra.Command, args []string) error {
	// Initialize logger for interactive mode (no stdout, only log buffer)
	if err := initLogger(false); err != nil {
		return err
	}

	c, err := newClient(args[0])
	if err != nil {
		return err
	}

	p := tea.NewProgram(initialModel(c))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running interactive mode: %w", err)
	}
	return nil
}
