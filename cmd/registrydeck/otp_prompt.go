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
	"bufio"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AleutianAI/RegistryDeck/pkg/ux"
)

// promptOtp reads a one-time password from the operator. Interactive
// terminals get an inline prompt; piped stdin falls back to a plain
// line read so scripted flows keep working. Returns "" on cancel.
func promptOtp() (string, error) {
	if !ux.IsTTY() {
		fmt.Print("OTP: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}

	final, err := tea.NewProgram(newOtpModel()).Run()
	if err != nil {
		return "", err
	}
	m, ok := final.(otpModel)
	if !ok || m.cancelled {
		return "", nil
	}
	return m.value, nil
}

// otpModel is a single-line input for the registry's 2FA code.
type otpModel struct {
	value     string
	done      bool
	cancelled bool
}

func newOtpModel() otpModel {
	return otpModel{}
}

func (m otpModel) Init() tea.Cmd {
	return nil
}

func (m otpModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.Type {
	case tea.KeyEnter:
		m.done = true
		return m, tea.Quit
	case tea.KeyEsc, tea.KeyCtrlC:
		m.cancelled = true
		return m, tea.Quit
	case tea.KeyBackspace:
		if len(m.value) > 0 {
			m.value = m.value[:len(m.value)-1]
		}
	case tea.KeyRunes:
		for _, r := range key.Runes {
			if r >= '0' && r <= '9' {
				m.value += string(r)
			}
		}
	}
	return m, nil
}

func (m otpModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return fmt.Sprintf("%s Enter the one-time password from your authenticator: %s█\n%s\n",
		ux.IconLock.Render(),
		m.value,
		ux.Styles.Muted.Render("  enter to submit · esc to cancel"),
	)
}
