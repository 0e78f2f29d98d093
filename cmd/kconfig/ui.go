package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/OsirisRTOS/osiris-sub000/internal/buildcfg"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	statusStyle  = lipgloss.NewStyle().Faint(true)
	appliedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	abortedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

type stage int

const (
	stagePicking stage = iota
	stageConfirming
	stageDone
)

type model struct {
	configPath string
	presetsDir string
	presets    []buildcfg.Preset
	cursor     int
	stage      stage
	applied    bool
	err        error
}

func newModel(configPath, presetsDir string, presets []buildcfg.Preset) model {
	return model{configPath: configPath, presetsDir: presetsDir, presets: presets}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch m.stage {
	case stagePicking:
		switch keyMsg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.presets)-1 {
				m.cursor++
			}
		case "enter":
			if len(m.presets) > 0 {
				m.stage = stageConfirming
			}
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case stageConfirming:
		switch keyMsg.String() {
		case "y":
			m.err = m.apply()
			m.applied = m.err == nil
			m.stage = stageDone
			return m, tea.Quit
		case "n", "esc":
			m.stage = stagePicking
		case "ctrl+c":
			return m, tea.Quit
		}
	case stageDone:
		return m, tea.Quit
	}
	return m, nil
}

func (m model) apply() error {
	chosen := m.presets[m.cursor]
	cfg, err := loadConfigOrEmpty(m.configPath)
	if err != nil {
		return err
	}
	preset, err := buildcfg.Load(chosen.Path)
	if err != nil {
		return err
	}
	return buildcfg.Save(m.configPath, buildcfg.ApplyPreset(cfg, preset))
}

func (m model) View() string {
	switch m.stage {
	case stageConfirming:
		return fmt.Sprintf(
			"%s\n\napply preset %q to %s? [y/n]\n",
			titleStyle.Render("confirm"), m.presets[m.cursor].Name, m.configPath,
		)
	case stageDone:
		if m.err != nil {
			return abortedStyle.Render(fmt.Sprintf("failed: %v\n", m.err))
		}
		if m.applied {
			return appliedStyle.Render(fmt.Sprintf("applied preset %q to %s\n", m.presets[m.cursor].Name, m.configPath))
		}
		return abortedStyle.Render("aborted\n")
	}

	if len(m.presets) == 0 {
		return fmt.Sprintf("no presets found under %s\n", m.presetsDir)
	}

	s := titleStyle.Render(fmt.Sprintf("presets in %s", m.presetsDir)) + "\n\n"
	for i, p := range m.presets {
		cursor := "  "
		line := p.Name
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
			line = cursorStyle.Render(p.Name)
		}
		s += cursor + line + "\n"
	}
	s += "\n" + statusStyle.Render("up/down to move, enter to select, q to quit") + "\n"
	return s
}

func runInteractive(configPath, presetsDir string) error {
	presets, err := buildcfg.ListPresets(presetsDir)
	if err != nil {
		return err
	}

	m := newModel(configPath, presetsDir, presets)
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(model); ok && fm.err != nil {
		return fm.err
	}
	return nil
}
