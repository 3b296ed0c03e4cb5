package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	structive "github.com/structive/structive-go"
	"github.com/structive/structive-go/internal/dom"
	"github.com/structive/structive-go/internal/engine"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	paneStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// templateItem is one compiled template in the browser list.
type templateItem struct {
	id      int
	summary string
	nested  bool
}

func (i templateItem) Title() string {
	kind := "root"
	if i.nested {
		kind = "nested"
	}
	return fmt.Sprintf("template %d (%s)", i.id, kind)
}
func (i templateItem) Description() string { return i.summary }
func (i templateItem) FilterValue() string { return i.summary }

// inspector browses the compiled templates of one file.
type inspector struct {
	file     string
	registry *structive.Registry
	list     list.Model
	detail   viewport.Model
	ready    bool
}

func newInspector(file string, registry *structive.Registry, rootID int) (*inspector, error) {
	ids := collectTemplateIDs(registry, rootID)
	items := make([]list.Item, 0, len(ids))
	for _, id := range ids {
		t, ok := registry.Template(id)
		if !ok {
			continue
		}
		items = append(items, templateItem{
			id:      id,
			summary: fmt.Sprintf("%d binding records", len(t.Records)),
			nested:  id != rootID,
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no templates compiled from %s", file)
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "templates"
	l.SetShowHelp(false)

	return &inspector{file: file, registry: registry, list: l}, nil
}

// collectTemplateIDs walks the record graph from the root template so nested
// if/for templates list in discovery order.
func collectTemplateIDs(registry *structive.Registry, rootID int) []int {
	seen := map[int]bool{}
	var order []int
	var visit func(id int)
	visit = func(id int) {
		if seen[id] {
			return
		}
		seen[id] = true
		order = append(order, id)
		t, ok := registry.Template(id)
		if !ok {
			return
		}
		var subs []int
		for _, rec := range t.Records {
			for _, expr := range rec.Exprs {
				if expr.SubTemplateID != 0 {
					subs = append(subs, expr.SubTemplateID)
				}
			}
		}
		sort.Ints(subs)
		for _, sub := range subs {
			visit(sub)
		}
	}
	visit(rootID)
	return order
}

func (m *inspector) Init() tea.Cmd { return nil }

func (m *inspector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		listWidth := msg.Width / 3
		m.list.SetSize(listWidth, msg.Height-4)
		m.detail = viewport.New(msg.Width-listWidth-6, msg.Height-4)
		m.ready = true
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	cmds = append(cmds, cmd)

	if m.ready {
		m.detail.SetContent(m.renderDetail())
		m.detail, cmd = m.detail.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *inspector) View() string {
	if !m.ready {
		return "loading..."
	}
	header := titleStyle.Render("structive inspect ") + subtleStyle.Render(m.file)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		paneStyle.Render(m.list.View()),
		paneStyle.Render(m.detail.View()),
	)
	return header + "\n" + body
}

// renderDetail formats the selected template: its serialized prototype and
// every binding record with node path and parsed expressions.
func (m *inspector) renderDetail() string {
	item, ok := m.list.SelectedItem().(templateItem)
	if !ok {
		return ""
	}
	t, ok := m.registry.Template(item.id)
	if !ok {
		return "template missing"
	}

	var b strings.Builder
	b.WriteString(labelStyle.Render("prototype") + "\n")
	b.WriteString(dom.SerializeChildren(t.Content) + "\n\n")
	b.WriteString(labelStyle.Render("records") + "\n")
	if len(t.Records) == 0 {
		b.WriteString(subtleStyle.Render("(none)") + "\n")
	}
	for _, rec := range t.Records {
		b.WriteString(fmt.Sprintf("node %v\n", rec.NodePath))
		for _, expr := range rec.Exprs {
			b.WriteString("  " + formatExpr(expr) + "\n")
		}
	}
	return b.String()
}

func formatExpr(expr engine.BindingExpr) string {
	var b strings.Builder
	b.WriteString(expr.NodeProperty)
	for _, f := range expr.OutputFilters {
		b.WriteString("|" + formatFilter(f))
	}
	b.WriteString(" : " + expr.StateProperty)
	for _, f := range expr.InputFilters {
		b.WriteString("|" + formatFilter(f))
	}
	if len(expr.Decorators) > 0 {
		b.WriteString(" @" + strings.Join(expr.Decorators, ","))
	}
	if expr.SubTemplateID != 0 {
		b.WriteString(fmt.Sprintf("  -> template %d", expr.SubTemplateID))
	}
	return b.String()
}

func formatFilter(f engine.FilterCall) string {
	if len(f.Options) == 0 {
		return f.Name
	}
	return f.Name + "," + strings.Join(f.Options, ",")
}
