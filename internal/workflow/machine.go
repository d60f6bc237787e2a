// Package workflow sequences a measurement session: idle, measuring,
// event annotation, notes and persistence, with confirmation gates
// between the steps.
package workflow

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stumelius/cranio-sub000/internal/annotation"
	"github.com/stumelius/cranio-sub000/internal/db"
	"github.com/stumelius/cranio-sub000/internal/producer"
	"github.com/stumelius/cranio-sub000/internal/report"
	"github.com/stumelius/cranio-sub000/internal/sensor"
)

// State names one node of the workflow machine.
type State string

const (
	StateInitial         State = "initial"
	StateMeasuring       State = "measuring"
	StateEventDetection  State = "event-detection"
	StateConfirmNoEvents State = "confirm-no-events"
	StateNotes           State = "notes"
	StateConfirmNotes    State = "confirm-notes"
	StateChangeSession   State = "change-session"
	StateConfirmSession  State = "confirm-session"
	StateConfirmExit     State = "confirm-exit"
	StateFinal           State = "final"
)

// Event is one user action fired at the machine.
type Event string

const (
	EventStart         Event = "start"
	EventStop          Event = "stop"
	EventOK            Event = "ok"
	EventYes           Event = "yes"
	EventNo            Event = "no"
	EventClose         Event = "close"
	EventChangeSession Event = "change-session"
	EventSelect        Event = "select"
	EventCancel        Event = "cancel"
)

const (
	// DefaultPollInterval is how often the UI loop drains the record
	// queue while measuring.
	DefaultPollInterval = 50 * time.Millisecond
	// DefaultJoinTimeout bounds the wait for the acquisition loop to
	// stop before it is force-quit.
	DefaultJoinTimeout = time.Second
)

// ErrMachineFinal is returned when firing an event at a finished
// machine.
var ErrMachineFinal = errors.New("workflow machine is final")

// Options configures a Machine. Database, Frontend and Sensor are
// injected; the machine holds no global state.
type Options struct {
	Database  *db.DB
	Frontend  Frontend
	Sensor    sensor.Sensor
	Log       *zap.Logger
	Operator  string
	SWVersion string

	PollInterval  time.Duration
	JoinTimeout   time.Duration
	QueueCapacity int
}

// Machine is the workflow state machine. Fire dispatches one event
// synchronously: entry and exit actions, including persistence, have
// completed when Fire returns. Fire is not safe for concurrent use;
// the frontend event loop is expected to be single threaded.
type Machine struct {
	database *db.DB
	frontend Frontend
	sensor   sensor.Sensor
	log      *zap.Logger
	operator string

	pollInterval  time.Duration
	joinTimeout   time.Duration
	queueCapacity int

	state   State
	session db.Session

	patientID        string
	distractorNumber int
	distractorType   string

	document db.Document
	process  *producer.Process
	editor   *annotation.Editor
	events   []db.AnnotatedEvent

	mu     sync.Mutex
	timeS  []float64
	torque []float64

	pollStop chan struct{}
	pollDone chan struct{}
}

// New builds a machine, records a new session row and enters the
// initial state.
func New(opts Options) (*Machine, error) {
	if opts.Database == nil {
		return nil, errors.New("workflow requires a database")
	}
	if opts.Frontend == nil {
		return nil, errors.New("workflow requires a frontend")
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = DefaultJoinTimeout
	}
	session, err := opts.Database.InsertSession(opts.SWVersion)
	if err != nil {
		return nil, err
	}
	m := &Machine{
		database:         opts.Database,
		frontend:         opts.Frontend,
		sensor:           opts.Sensor,
		log:              opts.Log,
		operator:         opts.Operator,
		pollInterval:     opts.PollInterval,
		joinTimeout:      opts.JoinTimeout,
		queueCapacity:    opts.QueueCapacity,
		session:          session,
		distractorNumber: 1,
		distractorType:   db.DistractorKLSRED,
	}
	m.log.Info("session started", zap.String("session", session.SessionID))
	m.enterInitial()
	return m, nil
}

func (m *Machine) State() State          { return m.state }
func (m *Machine) Session() db.Session   { return m.session }
func (m *Machine) Document() db.Document { return m.document }

// Editor exposes the active annotation editor while the annotation
// dialog is open.
func (m *Machine) Editor() *annotation.Editor { return m.editor }

// SetPatient selects the active patient for subsequent measurements.
func (m *Machine) SetPatient(patientID string) { m.patientID = patientID }

// SetDistractor selects the active distractor.
func (m *Machine) SetDistractor(number int, distractorType string) {
	m.distractorNumber = number
	m.distractorType = distractorType
}

// AddPatient inserts a new patient and refreshes the patient list.
// A duplicate identifier surfaces db.ErrPatientExists so the frontend
// can prompt for a correction.
func (m *Machine) AddPatient(patientID string) error {
	if _, err := m.database.InsertPatient(patientID); err != nil {
		return err
	}
	m.refreshPatients()
	return nil
}

// Fire dispatches one event. Events that are not valid in the current
// state return an error; failed guards log an error and leave the
// machine in place.
func (m *Machine) Fire(e Event) error {
	if m.state == StateFinal {
		return ErrMachineFinal
	}
	switch m.state {
	case StateInitial:
		switch e {
		case EventStart:
			return m.startMeasuring()
		case EventChangeSession:
			return m.openSessionPicker()
		case EventClose:
			m.frontend.Confirm("Are you sure you want to exit?")
			m.state = StateConfirmExit
			return nil
		}

	case StateMeasuring:
		if e == EventStop {
			if err := m.stopMeasuring(); err != nil {
				return err
			}
			m.enterEventDetection()
			return nil
		}

	case StateEventDetection:
		switch e {
		case EventOK:
			return m.persistEvents()
		case EventClose:
			m.frontend.Confirm("Are you sure there are no events to annotate?")
			m.state = StateConfirmNoEvents
			return nil
		}

	case StateConfirmNoEvents:
		switch e {
		case EventYes:
			m.frontend.CloseAnnotation()
			m.editor = nil
			m.enterInitial()
			return nil
		case EventNo:
			m.state = StateEventDetection
			return nil
		}

	case StateNotes:
		switch e {
		case EventOK:
			m.frontend.Confirm("Commit the notes and close this measurement?")
			m.state = StateConfirmNotes
			return nil
		case EventClose:
			return m.discardEvents()
		}

	case StateConfirmNotes:
		switch e {
		case EventYes:
			return m.commitNotes()
		case EventNo:
			m.state = StateNotes
			return nil
		}

	case StateChangeSession:
		switch e {
		case EventSelect:
			m.frontend.Confirm("Switch to the selected session?")
			m.state = StateConfirmSession
			return nil
		case EventCancel:
			m.frontend.CloseSessionPicker()
			m.enterInitial()
			return nil
		}

	case StateConfirmSession:
		switch e {
		case EventYes:
			return m.switchSession()
		case EventNo:
			m.state = StateChangeSession
			return nil
		}

	case StateConfirmExit:
		switch e {
		case EventYes:
			m.shutdown()
			m.state = StateFinal
			return nil
		case EventNo:
			m.enterInitial()
			return nil
		}
	}
	return fmt.Errorf("event %s is not valid in state %s", e, m.state)
}

func (m *Machine) enterInitial() {
	m.refreshPatients()
	m.state = StateInitial
}

func (m *Machine) refreshPatients() {
	patients, err := m.database.Patients()
	if err != nil {
		m.log.Error("refresh patient list failed", zap.Error(err))
		return
	}
	m.frontend.ShowPatients(patients)
}

// startMeasuring evaluates the start guards and, when they pass,
// persists a new document and starts acquisition.
func (m *Machine) startMeasuring() error {
	guardsPass := true
	if m.patientID == "" {
		m.log.Error("Invalid patient")
		guardsPass = false
	}
	if m.sensor == nil {
		m.log.Error("No sensors connected")
		guardsPass = false
	}
	if !guardsPass {
		return nil
	}

	prod := producer.New(m.log)
	if err := prod.Register(m.sensor); err != nil {
		m.log.Error("No sensors connected", zap.Error(err))
		return nil
	}

	info := m.sensor.Info()
	if err := m.database.EnsureSensorInfo(db.SensorInfo{
		SerialNumber:    info.SerialNumber,
		Name:            info.Name,
		TurnsInFullTurn: info.TurnsInFullTurn,
	}); err != nil {
		return err
	}
	doc, err := m.database.InsertDocument(db.Document{
		SessionID:          m.session.SessionID,
		PatientID:          m.patientID,
		DistractorNumber:   m.distractorNumber,
		DistractorType:     m.distractorType,
		StartedAt:          time.Now().UTC(),
		Operator:           m.operator,
		SensorSerialNumber: info.SerialNumber,
	})
	if err != nil {
		return err
	}
	m.document = doc
	m.events = nil
	m.mu.Lock()
	m.timeS, m.torque = nil, nil
	m.mu.Unlock()
	m.frontend.ClearPlot()

	m.process = producer.NewProcessWithCapacity("document "+doc.DocumentID, prod, m.log, m.queueCapacity)
	m.process.Start()
	m.startPolling()
	m.log.Info("measurement started",
		zap.String("document", doc.DocumentID), zap.String("patient", m.patientID))
	m.state = StateMeasuring
	return nil
}

func (m *Machine) startPolling() {
	m.pollStop = make(chan struct{})
	m.pollDone = make(chan struct{})
	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(m.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.drainIntoPlot()
			}
		}
	}(m.pollStop, m.pollDone)
}

// drainIntoPlot moves queued records onto the live plot and the run
// buffer. It never blocks on the sampling loop.
func (m *Machine) drainIntoPlot() {
	pkt := m.process.Read(false)
	if pkt == nil {
		return
	}
	timeS := producer.SecondsSince(m.document.StartedAt, pkt.Index)
	key := m.sensor.Channels()[0].String()
	torque := pkt.Data[key]

	m.mu.Lock()
	m.timeS = append(m.timeS, timeS...)
	m.torque = append(m.torque, torque...)
	m.mu.Unlock()
	m.frontend.AppendSamples(timeS, torque)
}

// stopMeasuring pauses acquisition, drains the final records and bulk
// inserts the measurements. The drain runs after the acquisition
// goroutine has joined so that a read still in flight at pause time
// makes it into the batch.
func (m *Machine) stopMeasuring() error {
	m.process.Pause()
	close(m.pollStop)
	<-m.pollDone
	if err := m.process.Join(m.joinTimeout); err != nil {
		m.log.Error("stop acquisition", zap.Error(err))
	}
	m.drainIntoPlot()

	m.mu.Lock()
	timeS := append([]float64(nil), m.timeS...)
	torque := append([]float64(nil), m.torque...)
	m.mu.Unlock()

	measurements := make([]db.Measurement, len(timeS))
	for i := range timeS {
		measurements[i] = db.Measurement{
			DocumentID: m.document.DocumentID,
			TimeS:      timeS[i],
			TorqueNm:   torque[i],
		}
	}
	if err := m.database.BulkInsertMeasurements(measurements); err != nil {
		return err
	}
	m.log.Info("measurement stopped",
		zap.String("document", m.document.DocumentID), zap.Int("samples", len(measurements)))
	return nil
}

// enterEventDetection opens the annotation dialog over the recorded
// series, prefilled with one region per expected distraction.
func (m *Machine) enterEventDetection() {
	m.mu.Lock()
	timeS := append([]float64(nil), m.timeS...)
	torque := append([]float64(nil), m.torque...)
	m.mu.Unlock()

	m.editor = annotation.NewEditor(timeS)
	if n := m.sensor.Info().TurnsInFullTurn; n > 0 {
		if err := m.editor.AddUniform(n); err != nil {
			m.log.Warn("no samples recorded, starting with no event regions", zap.Error(err))
		}
	}
	m.frontend.OpenAnnotation(m.editor, timeS, torque)
	m.state = StateEventDetection
}

// persistEvents copies the edited regions onto the active document and
// stores them, then moves to the notes step. Events carry the document
// identifier before they reach the database.
func (m *Machine) persistEvents() error {
	regions := m.editor.Regions()
	events := make([]db.AnnotatedEvent, len(regions))
	for i, r := range regions {
		low, high := r.Edges()
		events[i] = db.AnnotatedEvent{
			EventType:  db.EventTypeDistraction,
			EventNum:   r.EventNum,
			DocumentID: m.document.DocumentID,
			Begin:      low,
			End:        high,
			Done:       r.Done,
			Recorded:   r.Recorded,
		}
	}
	if err := m.database.InsertAnnotatedEvents(events); err != nil {
		return err
	}
	m.events = events
	m.frontend.CloseAnnotation()
	m.enterNotes()
	return nil
}

func (m *Machine) enterNotes() {
	defaultTurns := 0.0
	if n := m.sensor.Info().TurnsInFullTurn; n > 0 {
		defaultTurns = float64(len(m.events)) / float64(n)
	}
	m.mu.Lock()
	summary := report.Summarize(m.timeS, m.torque)
	m.mu.Unlock()
	m.frontend.OpenNotes(defaultTurns, summary)
	m.state = StateNotes
}

// discardEvents removes the just-inserted events and reopens the
// annotation dialog.
func (m *Machine) discardEvents() error {
	if err := m.database.DeleteAnnotatedEvents(m.document.DocumentID); err != nil {
		return err
	}
	m.events = nil
	m.frontend.CloseNotes()
	m.enterEventDetection()
	return nil
}

// commitNotes copies the notes dialog fields onto the document and
// persists the update, completing the measurement.
func (m *Machine) commitNotes() error {
	notes, fullTurnCount := m.frontend.Notes()
	if err := m.database.UpdateDocumentNotes(m.document.DocumentID, notes, fullTurnCount); err != nil {
		return err
	}
	m.document.Notes = notes
	m.document.FullTurnCount = fullTurnCount
	m.frontend.CloseNotes()
	m.log.Info("measurement committed", zap.String("document", m.document.DocumentID))
	m.enterInitial()
	return nil
}

func (m *Machine) openSessionPicker() error {
	sessions, err := m.database.Sessions()
	if err != nil {
		return err
	}
	m.frontend.OpenSessionPicker(sessions)
	m.state = StateChangeSession
	return nil
}

func (m *Machine) switchSession() error {
	session, err := m.database.SessionByID(m.frontend.SelectedSession())
	if err != nil {
		m.log.Error("switch session failed", zap.Error(err))
		m.state = StateChangeSession
		return nil
	}
	m.session = session
	m.frontend.CloseSessionPicker()
	m.log.Info("session switched", zap.String("session", session.SessionID))
	m.enterInitial()
	return nil
}

func (m *Machine) shutdown() {
	if m.process != nil && m.process.IsAlive() {
		if err := m.process.Join(m.joinTimeout); err != nil {
			m.log.Error("shutdown acquisition", zap.Error(err))
		}
	}
	m.log.Info("session finished", zap.String("session", m.session.SessionID))
}
