// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0
package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
)

// startStopper is the interface Spinner drives; satisfied by
// *spinner.Spinner, swappable in tests.
type startStopper interface {
	Start()
	Stop()
}

// Spinner indicates an asynchronous operation is taking place: the
// dependency checks during `reconctl doctor`.
type Spinner struct {
	spin startStopper
}

var charset = spinner.CharSets[11]

// NewSpinner returns a spinner writing to w.
func NewSpinner(w io.Writer) *Spinner {
	interval := 125 * time.Millisecond
	if os.Getenv("CI") == "true" {
		interval = 30 * time.Second
	}
	s := spinner.New(charset, interval, spinner.WithHiddenCursor(true))
	s.Writer = w
	s.Color("faint")
	return &Spinner{spin: s}
}

// Start starts the spinner suffixed with a label.
func (s *Spinner) Start(label string) {
	s.suffix(fmt.Sprintf(" %s", label))
	s.spin.Start()
}

// Stop stops the spinner and replaces it with a final label.
func (s *Spinner) Stop(label string) {
	s.finalMSG(label)
	s.spin.Stop()
}

func (s *Spinner) suffix(label string) {
	if sp, ok := s.spin.(*spinner.Spinner); ok {
		sp.Lock()
		sp.Suffix = label
		sp.Unlock()
	}
}

func (s *Spinner) finalMSG(label string) {
	if sp, ok := s.spin.(*spinner.Spinner); ok {
		sp.Lock()
		sp.FinalMSG = label + "\n"
		sp.Unlock()
	}
}
