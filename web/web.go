// Package web provides the HTML dashboard for the script service.
package web

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/bigrun/pkg/store"
)

// Handler serves the dashboard pages.
type Handler struct {
	store *store.Store
	pages map[string]*template.Template
}

// pageData wraps all page-specific data with common fields.
type pageData struct {
	NavActive string
	Title     string
	Data      interface{}
}

// New creates a new dashboard handler.
func New(s *store.Store) *Handler {
	funcMap := template.FuncMap{
		"timeAgo":    timeAgo,
		"formatTime": formatTime,
		"duration":   duration,
		"stateClass": stateClass,
		"stateIcon":  stateIcon,
		"truncate":   truncate,
		"countLines": countLines,
		"shortID":    shortID,
	}
	h := &Handler{store: s, pages: make(map[string]*template.Template)}
	for name, body := range pageTemplates {
		h.pages[name] = template.Must(template.New("layout").Funcs(funcMap).Parse(layoutTemplate + body))
	}
	return h
}

func (h *Handler) render(c *fiber.Ctx, page, navActive, title string, data interface{}) error {
	tmpl, ok := h.pages[page]
	if !ok {
		return c.Status(500).SendString(fmt.Sprintf("unknown page %q", page))
	}

	var buf bytes.Buffer
	pd := pageData{NavActive: navActive, Title: title, Data: data}
	if err := tmpl.ExecuteTemplate(&buf, "layout", pd); err != nil {
		return c.Status(500).SendString(fmt.Sprintf("template error: %v", err))
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.Send(buf.Bytes())
}

// Register adds dashboard routes to the Fiber app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/ui", h.dashboard)
	app.Get("/ui/scripts/:name", h.scriptDetail)
	app.Get("/ui/executions/:id", h.executionDetail)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/ui")
	})
}

// --- Page Data Types ---

type dashboardContent struct {
	Scripts        []*scriptView
	RecentExecs    []*store.Execution
	ActiveCount    int
	SucceededCount int
	FailedCount    int
	CancelledCount int
}

type scriptView struct {
	*store.Script
	ExecutionCount int
	ActiveCount    int
}

type scriptDetailContent struct {
	Script     *store.Script
	Executions []*store.Execution
}

// --- Page Handlers ---

func (h *Handler) dashboard(c *fiber.Ctx) error {
	var content dashboardContent
	var all []*store.Execution

	for _, sc := range h.store.ListScripts() {
		execs := h.store.ListExecutions(sc.Name)
		view := &scriptView{Script: sc, ExecutionCount: len(execs)}
		for _, e := range execs {
			switch e.State {
			case store.ExecutionActive:
				content.ActiveCount++
				view.ActiveCount++
			case store.ExecutionSucceeded:
				content.SucceededCount++
			case store.ExecutionFailed:
				content.FailedCount++
			case store.ExecutionCancelled:
				content.CancelledCount++
			}
		}
		content.Scripts = append(content.Scripts, view)
		all = append(all, execs...)
	}

	sort.Slice(content.Scripts, func(i, j int) bool {
		return content.Scripts[i].UpdateTime.After(content.Scripts[j].UpdateTime)
	})
	sort.Slice(all, func(i, j int) bool {
		return all[i].StartTime.After(all[j].StartTime)
	})
	if len(all) > 10 {
		all = all[:10]
	}
	content.RecentExecs = all

	return h.render(c, "dashboard", "dashboard", "Dashboard", content)
}

func (h *Handler) scriptDetail(c *fiber.Ctx) error {
	name := c.Params("name")
	sc, err := h.store.GetScript(name)
	if err != nil {
		return h.render(c, "not_found", "", "Not found", fmt.Sprintf("Script '%s' not found", name))
	}
	return h.render(c, "script", "scripts", sc.Name, scriptDetailContent{
		Script:     sc,
		Executions: h.store.ListExecutions(name),
	})
}

func (h *Handler) executionDetail(c *fiber.Ctx) error {
	id := c.Params("id")
	exec, err := h.store.GetExecution(id)
	if err != nil {
		return h.render(c, "not_found", "", "Not found", fmt.Sprintf("Execution '%s' not found", id))
	}
	return h.render(c, "execution", "scripts", "Execution "+shortID(exec.ID), exec)
}

// --- Template Helpers ---

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// timeAgo renders the age of t in the largest whole unit.
func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	if d < time.Minute {
		return "just now"
	}
	units := []struct {
		size time.Duration
		name string
	}{
		{24 * time.Hour, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
	}
	for _, u := range units {
		if n := int(d / u.size); n > 0 {
			if n == 1 {
				return "1 " + u.name + " ago"
			}
			return fmt.Sprintf("%d %ss ago", n, u.name)
		}
	}
	return "just now"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func duration(start, end time.Time) string {
	if end.IsZero() {
		return fmt.Sprintf("%s (running)", formatDuration(time.Since(start)))
	}
	return formatDuration(end.Sub(start))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Truncate(time.Second).String()
}

func stateClass(state store.ExecutionState) string {
	switch state {
	case store.ExecutionActive:
		return "state-active"
	case store.ExecutionSucceeded:
		return "state-succeeded"
	case store.ExecutionFailed:
		return "state-failed"
	case store.ExecutionCancelled:
		return "state-cancelled"
	default:
		return ""
	}
}

func stateIcon(state store.ExecutionState) template.HTML {
	switch state {
	case store.ExecutionActive:
		return "&#9654;"
	case store.ExecutionSucceeded:
		return "&#10003;"
	case store.ExecutionFailed:
		return "&#10007;"
	case store.ExecutionCancelled:
		return "&#9632;"
	default:
		return "&#8226;"
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
