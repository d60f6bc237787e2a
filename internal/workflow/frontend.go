package workflow

import (
	"github.com/stumelius/cranio-sub000/internal/annotation"
	"github.com/stumelius/cranio-sub000/internal/db"
	"github.com/stumelius/cranio-sub000/internal/report"
)

// Frontend abstracts the operator-facing surface: the live plot and the
// dialogs the machine opens and closes as it moves between states. The
// machine never blocks on the frontend; each method returns promptly
// and user responses come back as fired events.
type Frontend interface {
	// ShowPatients refreshes the patient list on the main view.
	ShowPatients(patients []db.Patient)

	// AppendSamples extends the live plot. Called from the polling
	// loop while measuring.
	AppendSamples(timeS, torque []float64)

	// ClearPlot empties the live plot before a new recording.
	ClearPlot()

	// OpenAnnotation shows the event annotation dialog for the
	// recorded series. The editor stays valid until the dialog closes.
	OpenAnnotation(editor *annotation.Editor, timeS, torque []float64)
	CloseAnnotation()

	// OpenNotes shows the notes dialog with a prefilled full turn
	// count and the recording summary.
	OpenNotes(defaultFullTurnCount float64, summary report.Summary)
	// Notes returns the operator's notes and full turn count as
	// currently entered in the dialog.
	Notes() (notes string, fullTurnCount float64)
	CloseNotes()

	// OpenSessionPicker shows the session list for continuing an
	// earlier session.
	OpenSessionPicker(sessions []db.Session)
	// SelectedSession returns the identifier picked in the dialog.
	SelectedSession() string
	CloseSessionPicker()

	// Confirm shows a yes/no confirmation with the given prompt.
	Confirm(prompt string)
}
