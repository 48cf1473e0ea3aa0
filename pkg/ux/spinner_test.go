// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewSpinner(t *testing.T) {
	spin := NewSpinner("Writing lyrics...")
	if spin == nil {
		t.Fatal("NewSpinner returned nil")
	}
	if spin.message != "Writing lyrics..." {
		t.Errorf("message = %q, want %q", spin.message, "Writing lyrics...")
	}
	if spin.spinType != SpinnerDots {
		t.Errorf("default type = %v, want SpinnerDots", spin.spinType)
	}
	if spin.stop == nil || spin.done == nil {
		t.Error("channels should be initialized")
	}
}

func TestSpinner_WithType(t *testing.T) {
	for _, spinType := range []SpinnerType{SpinnerDots, SpinnerNotes, SpinnerVinyl} {
		spin := NewSpinner("x").WithType(spinType)
		if spin.spinType != spinType {
			t.Errorf("WithType(%v) did not set the type", spinType)
		}
	}
}

func TestSpinnerFrames_AllTypesNonEmpty(t *testing.T) {
	for _, spinType := range []SpinnerType{SpinnerDots, SpinnerNotes, SpinnerVinyl} {
		if len(spinnerFrames[spinType]) == 0 {
			t.Errorf("SpinnerType %v has no frames", spinType)
		}
	}
}

func TestSpinner_StartStop(t *testing.T) {
	withLevel(t, PersonalityFull)

	out := captureStdout(func() {
		spin := NewSpinner("Writing lyrics...")
		spin.Start()
		time.Sleep(200 * time.Millisecond)
		spin.Stop()
	})
	if !strings.Contains(out, "Writing lyrics...") {
		t.Errorf("spinner output missing message: %q", out)
	}
}

func TestSpinner_StartIdempotent(t *testing.T) {
	withLevel(t, PersonalityMachine)

	spin := NewSpinner("x")
	spin.Start()
	spin.Start() // second call is a no-op
	spin.Stop()
}

func TestSpinner_StopWithoutStart(t *testing.T) {
	withLevel(t, PersonalityFull)
	spin := NewSpinner("x")
	spin.Stop() // must not panic or block
}

func TestSpinner_MachineMode(t *testing.T) {
	withLevel(t, PersonalityMachine)

	out := captureStdout(func() {
		spin := NewSpinner("Writing lyrics...")
		spin.Start()
		spin.Stop()
	})
	if !strings.Contains(out, "PROGRESS: Writing lyrics...") {
		t.Errorf("machine mode should print a single PROGRESS line, got %q", out)
	}
	if strings.Contains(out, "\r") {
		t.Errorf("machine mode should not animate, got %q", out)
	}
}

func TestSpinner_UpdateMessage(t *testing.T) {
	withLevel(t, PersonalityMachine)
	spin := NewSpinner("first")
	spin.UpdateMessage("second")
	if spin.message != "second" {
		t.Errorf("message = %q, want second", spin.message)
	}
}

func TestSpinner_StopWithOutcome(t *testing.T) {
	withLevel(t, PersonalityMachine)

	out := captureStdout(func() {
		spin := NewSpinner("working")
		spin.Start()
		spin.StopWithSuccess("done")
	})
	if !strings.Contains(out, "OK: done") {
		t.Errorf("StopWithSuccess output missing: %q", out)
	}

	errOut := captureStderr(func() {
		spin := NewSpinner("working")
		spin.Start()
		spin.StopWithError("failed")
	})
	if !strings.Contains(errOut, "ERROR: failed") {
		t.Errorf("StopWithError output missing: %q", errOut)
	}
}

func TestWithSpinner_Success(t *testing.T) {
	withLevel(t, PersonalityMachine)

	called := false
	err := WithSpinner("syncing", func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Errorf("WithSpinner returned error: %v", err)
	}
	if !called {
		t.Error("WithSpinner should invoke the function")
	}
}

func TestWithSpinner_Error(t *testing.T) {
	withLevel(t, PersonalityMachine)

	want := errors.New("backend unavailable")
	err := WithSpinner("syncing", func() error { return want })
	if !errors.Is(err, want) {
		t.Errorf("WithSpinner should return the function's error, got %v", err)
	}
}
