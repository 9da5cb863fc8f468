package review

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobfeed/internal/model"
)

// Resolver records a verdict on a pending review. *persist.Manager implements it.
type Resolver interface {
	ResolveReview(ctx context.Context, id string, duplicate bool) error
}

// Lines per item in the list view (title + subtitle + blank separator).
const itemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("39"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	itemTitleStyle = lipgloss.NewStyle().
			Bold(true)

	itemSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Width(12)

	matchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	differStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// resolvedMsg is sent when an async ResolveReview call completes.
type resolvedMsg struct {
	id        string
	duplicate bool
	err       error
}

type reviewModel struct {
	items         []Item
	cursor        int
	leftViewport  viewport.Model
	rightViewport viewport.Model
	width         int
	height        int
	ready         bool

	view           viewState
	detailViewport viewport.Model

	resolver  Resolver
	resolving bool
	status    string
	resolved  int

	wantQuit bool
}

func newReviewModel(items []Item, resolver Resolver) reviewModel {
	return reviewModel{items: items, resolver: resolver}
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case resolvedMsg:
		m.resolving = false
		if msg.err != nil {
			m.status = fmt.Sprintf("resolve failed: %v", msg.err)
			return m, nil
		}
		m.removeItem(msg.id)
		m.resolved++
		verdict := "distinct"
		if msg.duplicate {
			verdict = "duplicate"
		}
		m.status = "marked " + verdict
		m.view = viewList
		m.recalcContent()
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m reviewModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "b":
		return m, tea.Quit
	case "up", "k":
		m.cursor = clamp(m.cursor-1, 0, max(len(m.items)-1, 0))
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.cursor = clamp(m.cursor+1, 0, max(len(m.items)-1, 0))
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		return m.openDetailView()
	case "d", "n":
		return m.resolve(msg.String() == "d")
	}

	var cmd tea.Cmd
	m.leftViewport, cmd = m.leftViewport.Update(msg)
	return m, cmd
}

func (m reviewModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		if it, ok := m.current(); ok {
			openURL(it.Entry.Posting.SourceURL)
		}
		return m, nil
	case "d", "n":
		return m.resolve(msg.String() == "d")
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m reviewModel) resolve(duplicate bool) (tea.Model, tea.Cmd) {
	it, ok := m.current()
	if !ok || m.resolving || m.resolver == nil {
		return m, nil
	}
	if duplicate && it.Candidate == nil {
		m.status = "candidate no longer exists; mark as distinct"
		return m, nil
	}
	m.resolving = true
	m.status = "saving..."
	resolver := m.resolver
	id := it.Entry.ID
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return resolvedMsg{id: id, duplicate: duplicate, err: resolver.ResolveReview(ctx, id, duplicate)}
	}
}

func (m reviewModel) current() (Item, bool) {
	if len(m.items) == 0 {
		return Item{}, false
	}
	return m.items[m.cursor], true
}

func (m *reviewModel) removeItem(id string) {
	for i := range m.items {
		if m.items[i].Entry.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			break
		}
	}
	m.cursor = clamp(m.cursor, 0, max(len(m.items)-1, 0))
}

func (m *reviewModel) ensureCursorVisible() {
	vp := &m.leftViewport
	top := m.cursor * itemHeight
	bottom := top + itemHeight - 1
	if top < vp.YOffset {
		vp.SetYOffset(top)
	} else if bottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(bottom - vp.Height + 1)
	}
}

func (m reviewModel) openDetailView() (tea.Model, tea.Cmd) {
	if _, ok := m.current(); !ok {
		return m, nil
	}
	m.view = viewDetail
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

func (m *reviewModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	leftWidth := max((m.width-5)*2/5, 20)
	rightWidth := max(m.width-5-leftWidth, 30)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.leftViewport = viewport.New(leftWidth, paneHeight)
		m.rightViewport = viewport.New(rightWidth, paneHeight)
		m.ready = true
	} else {
		m.leftViewport.Width = leftWidth
		m.leftViewport.Height = paneHeight
		m.rightViewport.Width = rightWidth
		m.rightViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *reviewModel) recalcContent() {
	m.leftViewport.SetContent(renderItems(m.items, m.cursor))
	if it, ok := m.current(); ok {
		m.rightViewport.SetContent(renderComparison(it, m.rightViewport.Width))
	} else {
		m.rightViewport.SetContent("  nothing left to review")
	}
}

func (m reviewModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.view == viewDetail {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m reviewModel) viewList() string {
	leftHeader := headerStyle.Render(fmt.Sprintf(" Pending (%d)", len(m.items)))
	rightHeader := headerStyle.Render(" Posting vs candidate")

	leftPane := activeBorderStyle.Width(m.leftViewport.Width).Render(m.leftViewport.View())
	rightPane := inactiveBorderStyle.Width(m.rightViewport.Width).Render(m.rightViewport.View())

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(m.leftViewport.Width+2).Render(leftHeader),
		" ",
		lipgloss.NewStyle().Width(m.rightViewport.Width+2).Render(rightHeader),
	)
	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, " ", rightPane)

	return headerRow + "\n" + panes + "\n" + m.statusBar(" ↑/↓ move  d duplicate  n distinct  enter detail  esc back  q quit")
}

func (m reviewModel) viewDetail() string {
	title := headerStyle.Render("Review detail")
	content := activeBorderStyle.Width(m.width - 2).Render(m.detailViewport.View())
	return title + "\n" + content + "\n" + m.statusBar(" d duplicate  n distinct  o open posting  esc back  ↑/↓ scroll  q quit")
}

func (m reviewModel) statusBar(hints string) string {
	text := fmt.Sprintf(" %d resolved |%s", m.resolved, hints)
	if m.status != "" {
		text = fmt.Sprintf(" %s | %d resolved |%s", m.status, m.resolved, hints)
	}
	return statusBarStyle.Width(m.width).Render(text)
}

func (m reviewModel) renderDetail() string {
	it, ok := m.current()
	if !ok {
		return ""
	}
	wrapWidth := max(m.width-8, 20)
	divider := func(label string) string {
		fill := strings.Repeat("─", max(wrapWidth-len(label), 3))
		return dividerStyle.Render(label + fill)
	}

	var b strings.Builder
	b.WriteString(renderComparison(it, wrapWidth))
	b.WriteString("\n" + divider("── New posting ") + "\n\n")
	b.WriteString(wordWrap(orNone(it.Entry.Posting.Description), wrapWidth) + "\n")
	b.WriteString("\n" + divider("── Candidate ") + "\n\n")
	if it.Candidate != nil {
		b.WriteString(wordWrap(orNone(it.Candidate.Description), wrapWidth) + "\n")
	} else {
		b.WriteString(errorStyle.Render("candidate deleted") + "\n")
	}
	return b.String()
}

// renderComparison lines up the posting and its candidate field by field.
// Fields the engine counted as matching are green, the rest amber.
func renderComparison(it Item, width int) string {
	var b strings.Builder
	e := it.Entry
	fmt.Fprintf(&b, "%s%.0f%%\n", labelStyle.Render("Similarity"), e.Similarity*100)
	fmt.Fprintf(&b, "%s%s\n", labelStyle.Render("Source"), e.Source)
	fmt.Fprintf(&b, "%s%s\n\n", labelStyle.Render("Flagged"), e.CreatedAt.Local().Format("2006-01-02 15:04"))

	if it.Candidate == nil {
		b.WriteString(errorStyle.Render("⚠ candidate job no longer exists") + "\n")
		return b.String()
	}
	c := it.Candidate

	matched := make(map[string]bool, len(e.MatchedFields))
	for _, f := range e.MatchedFields {
		matched[f] = true
	}
	colWidth := max((width-14)/2, 10)
	row := func(label, field, left, right string) {
		st := differStyle
		if matched[field] || left == right {
			st = matchStyle
		}
		fmt.Fprintf(&b, "%s%s  %s\n", labelStyle.Render(label),
			st.Width(colWidth).Render(truncate(left, colWidth)),
			st.Width(colWidth).Render(truncate(right, colWidth)))
	}

	row("", "", "posting", "candidate")
	row("Title", "title", e.Posting.Title, c.Title)
	row("Company", "company", e.Posting.Company, c.Company)
	row("Location", "location", e.Posting.Location, c.Location)
	row("Posted", "", day(e.Posting.PostedAt), day(c.PostedAt))
	row("Salary", "", e.Posting.SalaryText, c.SalaryText)
	row("Sources", "", e.Posting.Source, strings.Join(c.Sources, ", "))
	row("URL", "", e.Posting.SourceURL, c.SourceURL)
	return b.String()
}

func renderItems(items []Item, cursor int) string {
	if len(items) == 0 {
		return "  (no pending reviews)"
	}

	var b strings.Builder
	for i, it := range items {
		titleSt, subtitleSt, prefix := itemTitleStyle, itemSubtitleStyle, "  "
		if i == cursor {
			titleSt, subtitleSt, prefix = selectedTitleStyle, selectedSubtitleStyle, "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(it.Entry.Posting.Title))
		b.WriteByte('\n')
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s · %s · %.0f%%",
			it.Entry.Posting.Company, it.Entry.Source, it.Entry.Similarity*100)))
		b.WriteByte('\n')

		if i < len(items)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func day(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.Format("2006-01-02")
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(no description)"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	if url == "" {
		return
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// Run launches the review console on items. Returns wantQuit=true if the
// user pressed q/ctrl+c, false if they pressed esc to go back to the picker.
func Run(items []Item, resolver Resolver) (resolved int, wantQuit bool, err error) {
	p := tea.NewProgram(newReviewModel(items, resolver), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return 0, false, err
	}
	final := result.(reviewModel)
	return final.resolved, final.wantQuit, nil
}
