package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/stumelius/cranio-sub000/internal/annotation"
	"github.com/stumelius/cranio-sub000/internal/db"
	"github.com/stumelius/cranio-sub000/internal/report"
)

// consoleFrontend is a line-oriented operator surface. Dialogs become
// printed prompts; dialog fields are set through commands before the
// corresponding ok/yes is fired.
type consoleFrontend struct {
	out io.Writer

	mu            sync.Mutex
	sampleCount   int
	lastTorque    float64
	notes         string
	fullTurnCount float64
	turnCountSet  bool
	selected      string
}

func newConsoleFrontend(out io.Writer) *consoleFrontend {
	return &consoleFrontend{out: out}
}

func (f *consoleFrontend) printf(format string, args ...interface{}) {
	fmt.Fprintf(f.out, format+"\n", args...)
}

func (f *consoleFrontend) ShowPatients(patients []db.Patient) {
	f.printf("patients:")
	for _, p := range patients {
		f.printf("  %s (created %s)", p.PatientID, p.CreatedAt.Format("2006-01-02"))
	}
}

func (f *consoleFrontend) AppendSamples(timeS, torque []float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sampleCount += len(torque)
	if len(torque) > 0 {
		f.lastTorque = torque[len(torque)-1]
	}
}

func (f *consoleFrontend) ClearPlot() {
	f.mu.Lock()
	f.sampleCount, f.lastTorque = 0, 0
	f.mu.Unlock()
}

// Progress reports the live sample count for the status line.
func (f *consoleFrontend) Progress() (int, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sampleCount, f.lastTorque
}

func (f *consoleFrontend) OpenAnnotation(editor *annotation.Editor, timeS, torque []float64) {
	f.printf("annotate events (%d samples recorded):", len(timeS))
	for _, r := range editor.Regions() {
		low, high := r.Edges()
		f.printf("  event %d: %.2f s .. %.2f s", r.EventNum, low, high)
	}
	f.printf("fire 'ok' to accept or 'close' if nothing happened")
}

func (f *consoleFrontend) CloseAnnotation() {}

func (f *consoleFrontend) OpenNotes(defaultFullTurnCount float64, summary report.Summary) {
	f.mu.Lock()
	if !f.turnCountSet {
		f.fullTurnCount = defaultFullTurnCount
	}
	f.mu.Unlock()
	f.printf("notes: %s", summary)
	f.printf("set 'notes <text>' and 'turns <count>' (default %.2f), then fire 'ok'", defaultFullTurnCount)
}

func (f *consoleFrontend) Notes() (string, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notes, f.fullTurnCount
}

func (f *consoleFrontend) CloseNotes() {
	f.mu.Lock()
	f.notes, f.fullTurnCount, f.turnCountSet = "", 0, false
	f.mu.Unlock()
}

// SetNotes stores the operator notes for the open notes dialog.
func (f *consoleFrontend) SetNotes(notes string) {
	f.mu.Lock()
	f.notes = notes
	f.mu.Unlock()
}

// SetFullTurnCount overrides the prefilled full turn count.
func (f *consoleFrontend) SetFullTurnCount(count float64) {
	f.mu.Lock()
	f.fullTurnCount = count
	f.turnCountSet = true
	f.mu.Unlock()
}

func (f *consoleFrontend) OpenSessionPicker(sessions []db.Session) {
	f.printf("sessions:")
	for _, s := range sessions {
		f.printf("  %s (started %s)", s.SessionID, s.StartedAt.Format("2006-01-02 15:04"))
	}
	f.printf("fire 'select <session-id>' or 'cancel'")
}

func (f *consoleFrontend) SelectedSession() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selected
}

// SetSelectedSession stores the picked session identifier.
func (f *consoleFrontend) SetSelectedSession(sessionID string) {
	f.mu.Lock()
	f.selected = sessionID
	f.mu.Unlock()
}

func (f *consoleFrontend) CloseSessionPicker() {}

func (f *consoleFrontend) Confirm(prompt string) {
	f.printf("%s (yes/no)", prompt)
}
