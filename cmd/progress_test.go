package cmd

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func newTestProgressModel(cancelled *bool) progressModel {
	cancel := func() {
		if cancelled != nil {
			*cancelled = true
		}
	}
	config := &Config{Table1: "orders_v1", Table2: "orders_v2"}
	return newProgressModel(cancel, config)
}

func TestProgressModelUpdate(t *testing.T) {
	t.Run("PhaseMessage", func(t *testing.T) {
		m := newTestProgressModel(nil)

		updated, _ := m.Update(phaseMsg("Executing comparison query..."))
		m = updated.(progressModel)

		if m.phase != "Executing comparison query..." {
			t.Errorf("unexpected phase: %s", m.phase)
		}
	})

	t.Run("ProgressMessage", func(t *testing.T) {
		m := newTestProgressModel(nil)

		updated, _ := m.Update(progressMsg{scanned: 1200, emitted: 37})
		m = updated.(progressModel)

		if m.scanned != 1200 || m.emitted != 37 {
			t.Errorf("counters not updated: scanned=%d emitted=%d", m.scanned, m.emitted)
		}
	})

	t.Run("DoneQuitsProgram", func(t *testing.T) {
		m := newTestProgressModel(nil)

		updated, cmd := m.Update(diffDoneMsg{err: nil})
		m = updated.(progressModel)

		if !m.done {
			t.Error("model should be done")
		}
		if cmd == nil {
			t.Fatal("expected a quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.Quit")
		}
	})

	t.Run("CtrlCCancelsWithoutQuitting", func(t *testing.T) {
		var cancelled bool
		m := newTestProgressModel(&cancelled)

		updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		m = updated.(progressModel)

		if !cancelled {
			t.Error("cancel function was not called")
		}
		if !m.cancelled {
			t.Error("model should be in cancelling state")
		}
		// The program quits only when the worker sends diffDoneMsg
		if cmd != nil {
			t.Error("cancel must not quit the program directly")
		}
	})

	t.Run("QKeyCancels", func(t *testing.T) {
		var cancelled bool
		m := newTestProgressModel(&cancelled)

		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
		m = updated.(progressModel)

		if !cancelled || !m.cancelled {
			t.Error("'q' should cancel the run")
		}
	})

	t.Run("OtherKeysIgnored", func(t *testing.T) {
		var cancelled bool
		m := newTestProgressModel(&cancelled)

		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
		m = updated.(progressModel)

		if cancelled || m.cancelled {
			t.Error("unrelated keys must not cancel the run")
		}
	})
}

func TestProgressModelView(t *testing.T) {
	t.Run("ShowsTablesAndPhase", func(t *testing.T) {
		m := newTestProgressModel(nil)

		view := m.View()
		if !strings.Contains(view, "orders_v1") || !strings.Contains(view, "orders_v2") {
			t.Errorf("view missing table names:\n%s", view)
		}
		if !strings.Contains(view, "Starting comparison...") {
			t.Errorf("view missing phase:\n%s", view)
		}
		if !strings.Contains(view, "to cancel") {
			t.Errorf("view missing cancel hint:\n%s", view)
		}
	})

	t.Run("ShowsCountsAfterProgress", func(t *testing.T) {
		m := newTestProgressModel(nil)

		updated, _ := m.Update(progressMsg{scanned: 120, emitted: 4})
		m = updated.(progressModel)

		view := m.View()
		if !strings.Contains(view, "120 rows scanned") {
			t.Errorf("view missing scan count:\n%s", view)
		}
		if !strings.Contains(view, "4 diff records") {
			t.Errorf("view missing record count:\n%s", view)
		}
	})

	t.Run("CancellingShowsWaitMessage", func(t *testing.T) {
		var cancelled bool
		m := newTestProgressModel(&cancelled)

		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		m = updated.(progressModel)

		view := m.View()
		if !strings.Contains(view, "Cancelling") {
			t.Errorf("view missing cancelling state:\n%s", view)
		}
	})

	t.Run("DoneRendersNothing", func(t *testing.T) {
		m := newTestProgressModel(nil)

		updated, _ := m.Update(diffDoneMsg{})
		m = updated.(progressModel)

		if view := m.View(); view != "" {
			t.Errorf("done model should render nothing, got:\n%s", view)
		}
	})
}

func TestProgressModelInit(t *testing.T) {
	m := newTestProgressModel(nil)
	if m.Init() == nil {
		t.Error("Init should start the spinner tick")
	}
}
