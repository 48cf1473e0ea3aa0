// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianStudio/pkg/ux"
	"github.com/AleutianAI/AleutianStudio/services/studio/tasksync"
)

func runWatch(cmd *cobra.Command, args []string) {
	watchTask(args[0])
}

// watchTask follows a task over the events websocket until it reaches a
// terminal state. Interactive terminals get a live progress view; pipes
// and CI get one line per update.
func watchTask(taskID string) {
	client := newAPIClient()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := client.DialEvents(ctx, taskID)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		watchInteractive(taskID, events)
		return
	}
	watchPlain(events)
}

// watchPlain prints one line per update. Machine-friendly output for pipes.
func watchPlain(events <-chan taskEvent) {
	for ev := range events {
		if ev.Timeout {
			fmt.Printf("task=%s timeout=true %s\n", ev.TaskID, ev.Message)
			continue
		}
		fmt.Printf("task=%s status=%s progress=%d variations=%d\n",
			ev.TaskID, ev.Status, ev.Progress, len(ev.Variations))
		if tasksync.Status(ev.Status).IsTerminal() {
			if ev.Error != "" {
				fmt.Printf("task=%s error=%q\n", ev.TaskID, ev.Error)
			}
			return
		}
	}
}

// --- Interactive watch (bubbletea) ---

var (
	watchTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	watchStatusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchDoneStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	watchFailStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	watchWarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// watchEventMsg wraps a websocket frame for the bubbletea loop.
type watchEventMsg taskEvent

// watchClosedMsg signals that the event stream ended.
type watchClosedMsg struct{}

// watchModel is the bubbletea model for the live task view.
type watchModel struct {
	taskID   string
	events   <-chan taskEvent
	bar      progress.Model
	last     taskEvent
	timedOut bool
	closed   bool
	quitting bool
}

func newWatchModel(taskID string, events <-chan taskEvent) watchModel {
	return watchModel{
		taskID: taskID,
		events: events,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// waitForEvent blocks on the next websocket frame.
func waitForEvent(events <-chan taskEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return watchClosedMsg{}
		}
		return watchEventMsg(ev)
	}
}

func (m watchModel) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case watchEventMsg:
		ev := taskEvent(msg)
		if ev.Timeout {
			m.timedOut = true
			return m, waitForEvent(m.events)
		}
		m.last = ev
		cmds := []tea.Cmd{
			m.bar.SetPercent(float64(ev.Progress) / 100.0),
		}
		if tasksync.Status(ev.Status).IsTerminal() {
			cmds = append(cmds, tea.Quit)
		} else {
			cmds = append(cmds, waitForEvent(m.events))
		}
		return m, tea.Batch(cmds...)

	case watchClosedMsg:
		m.closed = true
		return m, tea.Quit

	case progress.FrameMsg:
		barModel, cmd := m.bar.Update(msg)
		m.bar = barModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	s := watchTitleStyle.Render("♫ task "+m.taskID) + "\n\n"
	s += "  " + m.bar.View() + "\n\n"

	status := m.last.Status
	if status == "" {
		status = "connecting"
	}
	switch {
	case status == string(tasksync.StatusCompleted):
		s += "  " + watchDoneStyle.Render("completed") + "\n"
		for _, v := range m.last.Variations {
			s += fmt.Sprintf("    variation %d: %s\n", v.Index, v.AudioURL)
		}
	case tasksync.Status(status).IsTerminal():
		s += "  " + watchFailStyle.Render(status)
		if m.last.Error != "" {
			s += watchStatusStyle.Render("  " + m.last.Error)
		}
		s += "\n"
	default:
		s += "  " + watchStatusStyle.Render(fmt.Sprintf("%s  %d%%", status, m.last.Progress)) + "\n"
	}

	if m.timedOut && !tasksync.Status(status).IsTerminal() {
		s += "  " + watchWarnStyle.Render("still waiting past the usual window; the task may be stuck") + "\n"
	}
	if m.closed && !tasksync.Status(status).IsTerminal() {
		s += "  " + watchWarnStyle.Render("event stream ended") + "\n"
	}
	if !m.quitting {
		s += "\n" + watchStatusStyle.Render("  esc to stop watching") + "\n"
	}
	return s
}

func watchInteractive(taskID string, events <-chan taskEvent) {
	p := tea.NewProgram(newWatchModel(taskID, events))
	finalModel, err := p.Run()
	if err != nil {
		ux.Error(fmt.Sprintf("Watch UI failed: %v", err))
		os.Exit(1)
	}

	m, ok := finalModel.(watchModel)
	if !ok {
		return
	}
	switch tasksync.Status(m.last.Status) {
	case tasksync.StatusCompleted:
		ux.Success(fmt.Sprintf("Task %s completed with %d variation(s)",
			taskID, len(m.last.Variations)))
	case tasksync.StatusFailed, tasksync.StatusExpired:
		msg := "Task " + taskID + " " + m.last.Status
		if m.last.Error != "" {
			msg += ": " + m.last.Error
		}
		ux.Error(msg)
		os.Exit(1)
	}
}
