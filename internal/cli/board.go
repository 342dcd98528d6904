package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// Board panel indices.
const (
	panelReady = iota
	panelProgress
	panelBlocked
	panelSummary
	panelCount
)

type boardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	ready      []taskLine
	inProgress []taskLine
	blocked    []taskLine
	summary    *summarySnapshot
	alerts     []alertSnapshot

	// State.
	loading bool
	err     error
}

type taskLine struct {
	name     string
	priority string
	detail   string
}

type summarySnapshot struct {
	total     int
	completed int
	pending   int
	edges     int
	maxDepth  int
	created7d int
	done7d    int
}

type alertSnapshot struct {
	severity string
	message  string
}

// boardLoadedMsg carries loaded data back to the model.
type boardLoadedMsg struct {
	ready      []taskLine
	inProgress []taskLine
	blocked    []taskLine
	summary    *summarySnapshot
	alerts     []alertSnapshot
	err        error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newBoardModel() boardModel {
	return boardModel{
		activePanel: panelReady,
		loading:     true,
	}
}

func (m boardModel) Init() tea.Cmd {
	return loadBoard
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadBoard
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.ready = msg.ready
		m.inProgress = msg.inProgress
		m.blocked = msg.blocked
		m.summary = msg.summary
		m.alerts = msg.alerts
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m boardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" taskgraph board ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	panels := []string{
		m.renderTaskPanel("Ready", m.ready, "Nothing is ready."),
		m.renderTaskPanel("In progress", m.inProgress, "Nothing in progress."),
		m.renderTaskPanel("Blocked", m.blocked, "Nothing blocked."),
		m.renderSummaryPanel(),
	}

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 160 {
		colWidth := availableWidth / panelCount
		for i := range panels {
			panels[i] = m.applyPanelStyle(i, panels[i], colWidth-4)
		}
		body = lipgloss.JoinHorizontal(lipgloss.Top, panels...)
	} else {
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		for i := range panels {
			panels[i] = m.applyPanelStyle(i, panels[i], panelWidth)
		}
		body = lipgloss.JoinVertical(lipgloss.Left, panels...)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m boardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m boardModel) renderTaskPanel(title string, lines []taskLine, empty string) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", title, len(lines))))
	b.WriteString("\n")

	if len(lines) == 0 {
		b.WriteString("  " + empty)
		return b.String()
	}

	for _, l := range lines {
		b.WriteString(fmt.Sprintf("  %-3s %s\n", l.priority, truncate(l.name, 48)))
		if l.detail != "" {
			b.WriteString(helpStyle.Render("      "+l.detail) + "\n")
		}
	}
	return b.String()
}

func (m boardModel) renderSummaryPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Summary"))
	b.WriteString("\n")

	if m.summary == nil {
		b.WriteString("  No tasks found.")
		return b.String()
	}

	s := m.summary
	lines := []struct {
		label string
		value int
	}{
		{"Total", s.total},
		{"Completed", s.completed},
		{"Pending", s.pending},
		{"Edges", s.edges},
		{"Max depth", s.maxDepth},
		{"Created (7d)", s.created7d},
		{"Done (7d)", s.done7d},
	}
	for _, l := range lines {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", l.label, l.value))
	}

	if len(m.alerts) > 0 {
		b.WriteString("\n")
		for _, a := range m.alerts {
			sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
			b.WriteString(fmt.Sprintf("  %s %s\n", sev, a.message))
		}
	}
	return b.String()
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

func loadBoard() tea.Msg {
	var result boardLoadedMsg
	if Engine == nil {
		result.err = errEngineNotInitialized
		return result
	}

	for _, t := range Engine.ReadyTasks() {
		result.ready = append(result.ready, taskLine{name: t.Name, priority: string(t.Priority)})
	}

	all := Engine.ListTasks(models.TaskFilter{})
	names := nameIndex(all)
	for _, t := range all {
		switch t.Status {
		case models.StatusInProgress:
			result.inProgress = append(result.inProgress, taskLine{
				name:     t.Name,
				priority: string(t.Priority),
				detail:   "since " + t.UpdatedAt.Format("2006-01-02 15:04"),
			})
		case models.StatusBlocked:
			result.blocked = append(result.blocked, taskLine{
				name:     t.Name,
				priority: string(t.Priority),
				detail:   blockedDetail(t, names, all),
			})
		}
	}

	if len(all) > 0 {
		st := Engine.Statistics()
		result.summary = &summarySnapshot{
			total:     st.Total,
			completed: st.ByStatus[models.StatusCompleted],
			pending:   st.ByStatus[models.StatusPending],
			edges:     st.Graph.EdgeCount,
			maxDepth:  st.Graph.MaxDepth,
		}
	}

	if MetricsCalc != nil && result.summary != nil {
		metrics, err := MetricsCalc.Calculate(time.Now().UTC().AddDate(0, 0, -7))
		if err != nil {
			result.err = fmt.Errorf("loading metrics: %w", err)
			return result
		}
		result.summary.created7d = metrics.TasksCreated
		result.summary.done7d = metrics.TasksCompleted
	}

	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			result.err = fmt.Errorf("loading alerts: %w", err)
			return result
		}

		// Sort alerts by severity: high first, then medium, then low.
		sort.SliceStable(alerts, func(i, j int) bool {
			return severityRank(string(alerts[i].Severity)) < severityRank(string(alerts[j].Severity))
		})
		for _, a := range alerts {
			result.alerts = append(result.alerts, alertSnapshot{
				severity: string(a.Severity),
				message:  a.Message,
			})
		}
	}

	return result
}

// blockedDetail names the unfinished dependencies a task waits on, or the
// external blocker.
func blockedDetail(t models.Task, names map[string]string, all []models.Task) string {
	if t.BlockedReason == models.BlockedExternally {
		return "blocked externally"
	}
	status := make(map[string]models.TaskStatus, len(all))
	for _, o := range all {
		status[o.ID] = o.Status
	}
	var waiting []string
	for _, d := range t.Dependencies {
		if status[d] != models.StatusCompleted {
			waiting = append(waiting, names[d])
		}
	}
	if len(waiting) == 0 {
		return ""
	}
	return "waiting on " + strings.Join(waiting, ", ")
}

func severityRank(s string) int {
	switch s {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Interactive read-only board of ready, active and blocked tasks",
	Long: `Launch an interactive terminal board showing ready, in-progress and
blocked tasks alongside graph statistics, audit metrics and alerts.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		p := tea.NewProgram(newBoardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(boardCmd)
}
