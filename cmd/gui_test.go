package cmd

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"nexus-mod-manager/db"
)

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// TestModelNavigation tests navigation within the model
func TestModelNavigation(t *testing.T) {
	m := Model{
		rows: []ModRow{
			{Mod: db.Mod{Name: "Mod 1"}},
			{Mod: db.Mod{Name: "Mod 2"}},
			{Mod: db.Mod{Name: "Mod 3"}},
		},
	}

	step := func(key string) {
		updated, _ := m.Update(keyMsg(key))
		switch v := updated.(type) {
		case Model:
			m = v
		case *Model:
			m = *v
		}
	}

	step("j")
	if m.selectedIndex != 1 {
		t.Fatal("Navigation down failed")
	}
	step("j")
	if m.selectedIndex != 2 {
		t.Fatal("Navigation down failed on second move")
	}

	// Boundary, shouldn't go beyond the last item
	step("j")
	if m.selectedIndex != 2 {
		t.Fatal("Navigation should stop at last item")
	}

	step("k")
	if m.selectedIndex != 1 {
		t.Fatal("Navigation up failed")
	}

	// Boundary, shouldn't go below the first item
	m.selectedIndex = 0
	step("k")
	if m.selectedIndex != 0 {
		t.Fatal("Navigation should stop at first item")
	}
}

// TestWorkingGateBlocksKeys tests that navigation is ignored mid-work
func TestWorkingGateBlocksKeys(t *testing.T) {
	m := Model{
		working: true,
		rows: []ModRow{
			{Mod: db.Mod{Name: "Mod 1"}},
			{Mod: db.Mod{Name: "Mod 2"}},
		},
	}

	updated, _ := m.Update(keyMsg("j"))
	if um, ok := updated.(*Model); ok {
		m = *um
	}
	if m.selectedIndex != 0 {
		t.Fatal("keys should be ignored while an operation runs")
	}
}

// TestInstallKeyStartsWork tests the install key on an available mod
func TestInstallKeyStartsWork(t *testing.T) {
	m := Model{
		rows: []ModRow{
			{Mod: db.Mod{Name: "Better UI", Installed: false}},
		},
	}

	updated, cmd := m.Update(keyMsg("i"))
	um, ok := updated.(*Model)
	if !ok {
		t.Fatalf("unexpected model type %T", updated)
	}
	if !um.working || !strings.Contains(um.workingVerb, "Better UI") {
		t.Errorf("install key should enter the working state, got working=%v verb=%q", um.working, um.workingVerb)
	}
	if cmd == nil {
		t.Error("install key should schedule work")
	}
}

// TestInstallKeyIgnoresInstalledMod tests that installing twice is not offered
func TestInstallKeyIgnoresInstalledMod(t *testing.T) {
	m := Model{
		rows: []ModRow{
			{Mod: db.Mod{Name: "Better UI", Installed: true}},
		},
	}

	updated, _ := m.Update(keyMsg("i"))
	um, ok := updated.(*Model)
	if !ok {
		t.Fatalf("unexpected model type %T", updated)
	}
	if um.working {
		t.Error("an installed mod must not be installable again")
	}
}

// TestHandleRowsLoaded tests selection clamping on reload
func TestHandleRowsLoaded(t *testing.T) {
	m := Model{
		selectedIndex: 4,
		loading:       true,
	}
	m.handleRowsLoaded(rowsLoadedMsg{rows: []ModRow{
		{Mod: db.Mod{Name: "Mod 1"}},
		{Mod: db.Mod{Name: "Mod 2"}},
	}})

	if m.loading {
		t.Fatal("loading should end when rows arrive")
	}
	if m.selectedIndex != 1 {
		t.Fatalf("selection should clamp to the new list, got %d", m.selectedIndex)
	}
}

// TestEmptyRowList tests behavior with no registered mods
func TestEmptyRowList(t *testing.T) {
	m := Model{}

	view := m.View()
	if !strings.Contains(view, "No mods registered") {
		t.Fatalf("view should explain the empty list, got %q", view)
	}
}

// TestFooterNotes tests the bounded broadcast footer
func TestFooterNotes(t *testing.T) {
	m := Model{}
	for _, note := range []string{"one", "two", "three", "four", "five", "six", "seven"} {
		updated, _ := m.Update(busNoteMsg(note))
		m = updated.(Model)
	}

	if len(m.notes) != 5 {
		t.Fatalf("footer should keep the last 5 notes, has %d", len(m.notes))
	}
	if m.notes[0] != "three" || m.notes[4] != "seven" {
		t.Errorf("footer kept the wrong notes: %v", m.notes)
	}
}

// TestTruncateFunction tests the truncate helper function
func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"Hello World", 5, "He..."},
		{"Hi", 5, "Hi"},
		{"Test", 4, "Test"},
		{"LongString", 7, "Long..."},
		{"", 5, ""},
	}

	for _, test := range tests {
		result := truncate(test.input, test.maxLen)
		if result != test.expected {
			t.Fatalf("truncate(%q, %d) = %q, expected %q", test.input, test.maxLen, result, test.expected)
		}
	}
}

// TestGameColorStable tests that a game keeps its accent color
func TestGameColorStable(t *testing.T) {
	first := gameColor("abc123")
	second := gameColor("abc123")
	if first != second {
		t.Fatal("the accent color must be stable per code")
	}
	if first == 0 {
		t.Fatal("the accent color should be a real RGB value")
	}
}
