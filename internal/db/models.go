package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout is the text format for all stored timestamps.
const timeLayout = time.RFC3339Nano

// EventTypeDistraction is the event type code for distraction events.
const EventTypeDistraction = "D"

// DistractorType names the supported distractor hardware.
const (
	DistractorKLSArnaud = "KLS Martin Arnaud"
	DistractorKLSRED    = "KLS Martin RED"
)

type Patient struct {
	PatientID string
	CreatedAt time.Time
}

type Session struct {
	SessionID string
	StartedAt time.Time
	SWVersion string
}

type SensorInfo struct {
	SerialNumber    string
	Name            string
	TurnsInFullTurn int
}

type DistractorInfo struct {
	Type                    string
	DisplacementPerFullTurn float64
}

type EventType struct {
	Type        string
	Description string
}

// Document is one measurement document: a single recording for one
// patient, distractor and sensor within a session.
type Document struct {
	DocumentID         string
	SessionID          string
	PatientID          string
	DistractorNumber   int
	DistractorType     string
	StartedAt          time.Time
	Operator           string
	Notes              string
	FullTurnCount      float64
	SensorSerialNumber string
}

// DistractionAchieved returns the displacement in millimeters achieved
// during the document, given the distractor's displacement per full
// turn.
func (d Document) DistractionAchieved(info DistractorInfo) float64 {
	return d.FullTurnCount * info.DisplacementPerFullTurn
}

type Measurement struct {
	DocumentID string
	TimeS      float64
	TorqueNm   float64
}

type AnnotatedEvent struct {
	EventType  string
	EventNum   int
	DocumentID string
	Begin      float64
	End        float64
	Done       bool
	Recorded   bool
}

type Log struct {
	SessionID string
	CreatedAt time.Time
	Logger    string
	Level     string
	Trace     string
	Message   string
}

// EventTypes returns the supported event types for the lookup table.
func EventTypes() []EventType {
	return []EventType{{Type: EventTypeDistraction, Description: "Distraction event"}}
}

// DistractorInfos returns the supported distractors for the lookup
// table.
func DistractorInfos() []DistractorInfo {
	return []DistractorInfo{
		{Type: DistractorKLSArnaud, DisplacementPerFullTurn: 1.0},
		{Type: DistractorKLSRED, DisplacementPerFullTurn: 0.5},
	}
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}

// InsertPatient adds a new patient. Inserting an existing patient
// returns ErrPatientExists.
func (db *DB) InsertPatient(patientID string) (Patient, error) {
	if patientID == "" {
		return Patient{}, ErrInvalidPatientID
	}
	p := Patient{PatientID: patientID, CreatedAt: time.Now().UTC()}
	_, err := db.Exec(
		"INSERT INTO dim_patient (patient_id, created_at) VALUES (?, ?)",
		p.PatientID, formatTime(p.CreatedAt),
	)
	if isUniqueViolation(err) {
		return Patient{}, fmt.Errorf("insert patient %s: %w", patientID, ErrPatientExists)
	}
	if err != nil {
		return Patient{}, fmt.Errorf("insert patient %s: %w", patientID, err)
	}
	return p, nil
}

// Patients returns all patients ordered by identifier.
func (db *DB) Patients() ([]Patient, error) {
	rows, err := db.Query("SELECT patient_id, created_at FROM dim_patient ORDER BY patient_id")
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		var p Patient
		var createdAt string
		if err := rows.Scan(&p.PatientID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// InsertSession records the start of a new application session.
func (db *DB) InsertSession(swVersion string) (Session, error) {
	s := Session{
		SessionID: uuid.NewString(),
		StartedAt: time.Now().UTC(),
		SWVersion: swVersion,
	}
	_, err := db.Exec(
		"INSERT INTO dim_session (session_id, started_at, sw_version) VALUES (?, ?, ?)",
		s.SessionID, formatTime(s.StartedAt), s.SWVersion,
	)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

// Sessions returns all sessions ordered by start time.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query("SELECT session_id, started_at, sw_version FROM dim_session ORDER BY started_at")
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var startedAt string
		if err := rows.Scan(&s.SessionID, &startedAt, &s.SWVersion); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if s.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// SessionByID returns the session with the given identifier.
func (db *DB) SessionByID(sessionID string) (Session, error) {
	var s Session
	var startedAt string
	err := db.QueryRow(
		"SELECT session_id, started_at, sw_version FROM dim_session WHERE session_id = ?",
		sessionID,
	).Scan(&s.SessionID, &startedAt, &s.SWVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return Session{}, fmt.Errorf("query session %s: %w", sessionID, err)
	}
	if s.StartedAt, err = parseTime(startedAt); err != nil {
		return Session{}, err
	}
	return s, nil
}

// EnsureSensorInfo records the sensor hardware if it is not already
// known.
func (db *DB) EnsureSensorInfo(info SensorInfo) error {
	_, err := db.Exec(
		"INSERT OR IGNORE INTO dim_hw_sensor (sensor_serial_number, sensor_name, turns_in_full_turn) VALUES (?, ?, ?)",
		info.SerialNumber, info.Name, info.TurnsInFullTurn,
	)
	if err != nil {
		return fmt.Errorf("ensure sensor %s: %w", info.SerialNumber, err)
	}
	return nil
}

// InsertDocument stores a new measurement document and returns it with
// its generated identifier.
func (db *DB) InsertDocument(doc Document) (Document, error) {
	if doc.DocumentID == "" {
		doc.DocumentID = uuid.NewString()
	}
	_, err := db.Exec(
		`INSERT INTO dim_document
		 (document_id, session_id, patient_id, distractor_number, distractor_type,
		  started_at, operator, notes, full_turn_count, sensor_serial_number)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.DocumentID, doc.SessionID, doc.PatientID, doc.DistractorNumber, doc.DistractorType,
		formatTime(doc.StartedAt), doc.Operator, doc.Notes, doc.FullTurnCount, doc.SensorSerialNumber,
	)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

// UpdateDocumentNotes stores the operator notes and full turn count for
// an existing document.
func (db *DB) UpdateDocumentNotes(documentID, notes string, fullTurnCount float64) error {
	res, err := db.Exec(
		"UPDATE dim_document SET notes = ?, full_turn_count = ? WHERE document_id = ?",
		notes, fullTurnCount, documentID,
	)
	if err != nil {
		return fmt.Errorf("update document %s notes: %w", documentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document %s notes: %w", documentID, err)
	}
	if n == 0 {
		return fmt.Errorf("document %s not found", documentID)
	}
	return nil
}

// DocumentByID returns the document with the given identifier.
func (db *DB) DocumentByID(documentID string) (Document, error) {
	var doc Document
	var startedAt string
	err := db.QueryRow(
		`SELECT document_id, session_id, patient_id, distractor_number, distractor_type,
		        started_at, operator, notes, full_turn_count, sensor_serial_number
		 FROM dim_document WHERE document_id = ?`,
		documentID,
	).Scan(&doc.DocumentID, &doc.SessionID, &doc.PatientID, &doc.DistractorNumber, &doc.DistractorType,
		&startedAt, &doc.Operator, &doc.Notes, &doc.FullTurnCount, &doc.SensorSerialNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("document %s not found", documentID)
	}
	if err != nil {
		return Document{}, fmt.Errorf("query document %s: %w", documentID, err)
	}
	if doc.StartedAt, err = parseTime(startedAt); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// BulkInsertMeasurements stores a batch of measurements in one
// transaction.
func (db *DB) BulkInsertMeasurements(measurements []Measurement) error {
	if len(measurements) == 0 {
		return nil
	}
	return db.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(
			"INSERT INTO fact_measurement (document_id, time_s, torque_Nm) VALUES (?, ?, ?)",
		)
		if err != nil {
			return fmt.Errorf("prepare measurement insert: %w", err)
		}
		defer stmt.Close()
		for _, m := range measurements {
			if _, err := stmt.Exec(m.DocumentID, m.TimeS, m.TorqueNm); err != nil {
				return fmt.Errorf("insert measurement: %w", err)
			}
		}
		return nil
	})
}

// RelatedTimeSeries returns the measurements for a document in time
// order as parallel slices.
func (db *DB) RelatedTimeSeries(documentID string) (timeS, torque []float64, err error) {
	rows, err := db.Query(
		"SELECT time_s, torque_Nm FROM fact_measurement WHERE document_id = ? ORDER BY time_s",
		documentID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query measurements for document %s: %w", documentID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var t, v float64
		if err := rows.Scan(&t, &v); err != nil {
			return nil, nil, fmt.Errorf("scan measurement: %w", err)
		}
		timeS = append(timeS, t)
		torque = append(torque, v)
	}
	return timeS, torque, rows.Err()
}

// InsertAnnotatedEvents stores a batch of annotated events in one
// transaction.
func (db *DB) InsertAnnotatedEvents(events []AnnotatedEvent) error {
	if len(events) == 0 {
		return nil
	}
	return db.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(
			`INSERT INTO fact_annotated_event
			 (event_type, event_num, document_id, event_begin, event_end, annotation_done, recorded)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("prepare event insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range events {
			if _, err := stmt.Exec(e.EventType, e.EventNum, e.DocumentID, e.Begin, e.End, e.Done, e.Recorded); err != nil {
				return fmt.Errorf("insert event %d for document %s: %w", e.EventNum, e.DocumentID, err)
			}
		}
		return nil
	})
}

// RelatedEvents returns the annotated events for a document in event
// number order.
func (db *DB) RelatedEvents(documentID string) ([]AnnotatedEvent, error) {
	rows, err := db.Query(
		`SELECT event_type, event_num, document_id, event_begin, event_end, annotation_done, recorded
		 FROM fact_annotated_event WHERE document_id = ? ORDER BY event_num`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events for document %s: %w", documentID, err)
	}
	defer rows.Close()

	var events []AnnotatedEvent
	for rows.Next() {
		var e AnnotatedEvent
		if err := rows.Scan(&e.EventType, &e.EventNum, &e.DocumentID, &e.Begin, &e.End, &e.Done, &e.Recorded); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteAnnotatedEvents removes all annotated events of a document.
func (db *DB) DeleteAnnotatedEvents(documentID string) error {
	_, err := db.Exec("DELETE FROM fact_annotated_event WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("delete events for document %s: %w", documentID, err)
	}
	return nil
}

// InsertLog stores one application log record.
func (db *DB) InsertLog(entry Log) error {
	_, err := db.Exec(
		"INSERT INTO fact_log (session_id, created_at, logger, level, trace, message) VALUES (?, ?, ?, ?, ?, ?)",
		entry.SessionID, formatTime(entry.CreatedAt), entry.Logger, entry.Level, entry.Trace, entry.Message,
	)
	if err != nil {
		return fmt.Errorf("insert log record: %w", err)
	}
	return nil
}
