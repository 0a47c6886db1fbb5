package taskform

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/facility-maintenance/internal/model"
	"github.com/nhle/facility-maintenance/internal/theme"
	"github.com/nhle/facility-maintenance/internal/workflow"
)

// Mode selects which side-data the form collects.
type Mode int

const (
	ModeReport Mode = iota
	ModeAssign
	ModeProof
)

// SubmittedMsg carries the collected side-data for Entity. Only the
// field matching Mode is set.
type SubmittedMsg struct {
	Mode      Mode
	Entity    model.WorkflowEntity
	Report    *workflow.ReportPayload
	WorkerIDs []int64
	ProofPath string
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	equipmentID int64
	condition   string
	health      string
	otherInfo   string
	workerIDs   []int64
	proofPath   string
}

// Model is the Bubble Tea model for the task side-data forms.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	mode   Mode
	entity model.WorkflowEntity
	width  int
	height int
}

// New creates a new task form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// StartReport initializes the condition report form for a preventive
// task. Equipment already reported for the task is not offered.
func (m *Model) StartReport(
	entity model.WorkflowEntity,
	inventory []model.InventoryItem,
	reports []model.Report,
) tea.Cmd {
	m.reset(ModeReport, entity)

	reported := make(map[int64]bool)
	for _, r := range reports {
		if r.PreventiveID == entity.ID {
			reported[r.InventoryID] = true
		}
	}

	opts := []huh.Option[int64]{huh.NewOption("Select equipment", int64(0))}
	for _, item := range inventory {
		if !reported[item.ID] {
			opts = append(opts, huh.NewOption(item.Label(), item.ID))
		}
	}

	m.form = m.newForm(
		huh.NewSelect[int64]().
			Title("Equipment").
			Options(opts...).
			Value(&m.fb.equipmentID).
			Validate(func(id int64) error {
				if id == 0 {
					return fmt.Errorf("please select equipment")
				}
				return nil
			}),
		huh.NewText().
			Title("Condition").
			Placeholder("Describe the equipment condition").
			Value(&m.fb.condition).
			Validate(validateRequired("Condition")),
		huh.NewInput().
			Title("Health (10)").
			Placeholder("0-10").
			Value(&m.fb.health).
			Validate(validateHealth),
		huh.NewInput().
			Title("Other Information").
			Placeholder("Optional").
			Value(&m.fb.otherInfo),
	)
	return m.form.Init()
}

// StartAssign initializes the worker picker for an approved request.
func (m *Model) StartAssign(entity model.WorkflowEntity, workers []model.User) tea.Cmd {
	m.reset(ModeAssign, entity)

	opts := make([]huh.Option[int64], len(workers))
	for i, w := range workers {
		opts[i] = huh.NewOption(w.Label(), w.ID)
	}
	for _, a := range entity.Assignees {
		m.fb.workerIDs = append(m.fb.workerIDs, a.ID)
	}

	m.form = m.newForm(
		huh.NewMultiSelect[int64]().
			Title("Utility workers").
			Options(opts...).
			Value(&m.fb.workerIDs).
			Validate(func(ids []int64) error {
				if len(ids) == 0 {
					return fmt.Errorf("select at least one worker")
				}
				return nil
			}),
	)
	return m.form.Init()
}

// StartProof initializes the proof-of-work picker.
func (m *Model) StartProof(entity model.WorkflowEntity) tea.Cmd {
	m.reset(ModeProof, entity)

	m.form = m.newForm(
		huh.NewInput().
			Title("Proof image").
			Placeholder("path/to/photo.jpg").
			Value(&m.fb.proofPath).
			Validate(validateImagePath),
	)
	return m.form.Init()
}

func (m *Model) reset(mode Mode, entity model.WorkflowEntity) {
	m.mode = mode
	m.entity = entity
	*m.fb = formBindings{}
}

func (m *Model) newForm(fields ...huh.Field) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

// Update handles messages for the task form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.form = nil
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the task form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	var title string
	switch m.mode {
	case ModeReport:
		title = "Report: " + m.entity.Title
	case ModeAssign:
		title = "Assign: " + m.entity.Title
	case ModeProof:
		title = "Proof of work: " + m.entity.Title
	}

	content := theme.TitleStyle.Render(title) + "\n"
	if m.mode == ModeReport && m.entity.Description != "" {
		content += theme.HelpStyle.Render("Description: "+m.entity.Description) + "\n\n"
	}
	content += m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) handleSubmit() tea.Cmd {
	out := SubmittedMsg{Mode: m.mode, Entity: m.entity}
	switch m.mode {
	case ModeReport:
		out.Report = &workflow.ReportPayload{
			EquipmentID: m.fb.equipmentID,
			Condition:   m.fb.condition,
			Health:      m.fb.health,
			OtherInfo:   m.fb.otherInfo,
		}
	case ModeAssign:
		out.WorkerIDs = append([]int64(nil), m.fb.workerIDs...)
	case ModeProof:
		out.ProofPath = strings.TrimSpace(m.fb.proofPath)
	}
	return func() tea.Msg { return out }
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 6
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateHealth(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("health is required")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 10 {
		return fmt.Errorf("health must be a number from 0 to 10")
	}
	return nil
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

func validateImagePath(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("choose an image")
	}
	if !imageExts[strings.ToLower(filepath.Ext(s))] {
		return fmt.Errorf("proof must be a .jpg or .png image")
	}
	info, err := os.Stat(s)
	if err != nil {
		return fmt.Errorf("cannot read %s", s)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", s)
	}
	return nil
}
