// Command stresslab-tui is a live dashboard for a running stresslab
// management API, polling /v1/run/status and /v1/history once a second and
// rendering them with Bubbletea, generalizing cmd/ratelord-tui/main.go's
// two-pane poll-and-render shape from event/identity streams to run status
// and history rows.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	pollRate       = time.Second
	viewportHeight = 15
)

var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	rowTimeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(20)
	rowPassStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	rowFailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// runStatus mirrors the JSON shape of orchestrator.RunResult, kept as its
// own type so this binary carries no dependency on the orchestrator package.
type runStatus struct {
	ScenarioName      string  `json:"ScenarioName"`
	Status            int     `json:"Status"`
	JudgedPassed      bool    `json:"JudgedPassed"`
	Total             uint64  `json:"Total"`
	Successful        uint64  `json:"Successful"`
	Failed            uint64  `json:"Failed"`
	ErrorRatePercent  float64 `json:"ErrorRatePercent"`
	AverageLatencyMs  float64 `json:"AverageLatencyMs"`
	P95LatencyMs      float64 `json:"P95LatencyMs"`
	RequestsPerSecond float64 `json:"RequestsPerSecond"`
}

// historyRow mirrors the JSON shape of history.HistoryRecord.
type historyRow struct {
	ExecutionDate         time.Time `json:"ExecutionDate"`
	Status                int       `json:"Status"`
	ErrorRatePercent      float64   `json:"ErrorRatePercent"`
	AverageResponseTimeMs float64   `json:"AverageResponseTimeMs"`
}

type tickMsg time.Time

type dataMsg struct {
	status  *runStatus
	history []historyRow
	err     error
}

type model struct {
	spinner  spinner.Model
	viewport viewport.Model
	apiURL   string
	scenario string

	status  *runStatus
	history []historyRow
	err     error
	ready   bool
}

func initialModel(apiURL, scenario string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	vp := viewport.New(100, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)

	return model{spinner: s, viewport: vp, apiURL: apiURL, scenario: scenario}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, fetchData(m.apiURL, m.scenario), tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(m.apiURL, m.scenario), tick())

	case dataMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.history = msg.history
			m.updateViewportContent()
		}
		m.ready = true

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}

	return m, tea.Batch(cmds...)
}

func (m *model) updateViewportContent() {
	var sb strings.Builder
	for _, row := range m.history {
		ts := row.ExecutionDate.Format("15:04:05")
		style := rowPassStyle
		if row.ErrorRatePercent > 0 {
			style = rowFailStyle
		}
		sb.WriteString(fmt.Sprintf("%s %s\n",
			rowTimeStyle.Render(ts),
			style.Render(fmt.Sprintf("avg=%.1fms err=%.1f%%", row.AverageResponseTimeMs, row.ErrorRatePercent)),
		))
	}
	m.viewport.SetContent(sb.String())
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Initializing...", m.spinner.View())
	}

	var summary strings.Builder
	summary.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Latest Run") + "\n\n")
	if m.status == nil {
		summary.WriteString(subtleStyle.Render("No run recorded yet."))
	} else {
		s := m.status
		verdict := rowPassStyle.Render("PASS")
		if !s.JudgedPassed {
			verdict = rowFailStyle.Render("FAIL")
		}
		summary.WriteString(fmt.Sprintf("%s  total=%d  failed=%d  errRate=%.2f%%  avg=%.1fms  p95=%.1fms  rps=%.1f\n",
			verdict, s.Total, s.Failed, s.ErrorRatePercent, s.AverageLatencyMs, s.P95LatencyMs, s.RequestsPerSecond))
	}
	topPane := paneStyle.Render(summary.String())

	header := headerStyle.Render(fmt.Sprintf("%s History: %s", m.spinner.View(), m.scenario))
	bottomPane := m.viewport.View()

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %d history rows", len(m.history)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, bottomPane, footer)
}

func fetchData(apiURL, scenarioName string) tea.Cmd {
	return func() tea.Msg {
		status, err := getStatus(apiURL, scenarioName)
		if err != nil {
			return dataMsg{err: err}
		}
		history, err := getHistory(apiURL, scenarioName)
		if err != nil {
			return dataMsg{err: err}
		}
		return dataMsg{status: status, history: history}
	}
}

func getStatus(apiURL, scenarioName string) (*runStatus, error) {
	c := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := c.Get(fmt.Sprintf("%s/v1/run/status?name=%s", apiURL, scenarioName))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	var s runStatus
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func getHistory(apiURL, scenarioName string) ([]historyRow, error) {
	c := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := c.Get(fmt.Sprintf("%s/v1/history?test=%s&limit=20", apiURL, scenarioName))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history endpoint returned %d", resp.StatusCode)
	}
	var rows []historyRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func main() {
	apiURL := flag.String("api", "http://127.0.0.1:8070", "base URL of the stresslab management API")
	scenarioName := flag.String("scenario", "", "scenario name to watch")
	flag.Parse()

	if *scenarioName == "" {
		fmt.Fprintln(os.Stderr, "stresslab-tui: --scenario is required")
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(*apiURL, *scenarioName), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
