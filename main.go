package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/stumelius/cranio-sub000/internal/config"
	"github.com/stumelius/cranio-sub000/internal/db"
	"github.com/stumelius/cranio-sub000/internal/logging"
	"github.com/stumelius/cranio-sub000/internal/report"
	"github.com/stumelius/cranio-sub000/internal/sensor"
	"github.com/stumelius/cranio-sub000/internal/workflow"
)

const swVersion = "0.1.0"

var (
	devMode    = flag.Bool("dev", false, "run with the simulated sensor")
	dbPath     = flag.String("db", "", "SQLite database path (overrides config)")
	configPath = flag.String("config", "", "path to config JSON")
	reportDoc  = flag.String("report", "", "write an HTML report for the given document id and exit")
	reportOut  = flag.String("o", "report.html", "report output path")
)

func main() {
	flag.Parse()

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}

	log, err := logging.New(*devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	path := cfg.GetDatabasePath()
	if *dbPath != "" {
		path = *dbPath
	}
	database, err := db.Open(path)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer database.Close()

	if *reportDoc != "" {
		writeReport(database, *reportDoc, *reportOut, log)
		return
	}

	var s sensor.Sensor
	if *devMode {
		sim := sensor.NewSimulated()
		sim.Generator = sensor.RandomValueGenerator
		sim.Delay = cfg.GetSampleDelay()
		sim.RegisterChannel(sensor.ChannelInfo{Name: "torque", Unit: "Nm"})
		s = sim
	} else {
		gauge := sensor.NewGauge(cfg.GetSerialPort(), nil, log)
		gauge.Delay = cfg.GetSampleDelay()
		s = gauge
	}

	logCore := logging.NewDBCore(database)
	log = logging.Attach(log, logCore)

	frontend := newConsoleFrontend(os.Stdout)
	m, err := workflow.New(workflow.Options{
		Database:      database,
		Frontend:      frontend,
		Sensor:        s,
		Log:           log,
		Operator:      cfg.GetOperator(),
		SWVersion:     swVersion,
		PollInterval:  cfg.GetUIPollInterval(),
		JoinTimeout:   cfg.GetJoinTimeout(),
		QueueCapacity: cfg.GetQueueCapacity(),
	})
	if err != nil {
		log.Fatal("build workflow", zap.Error(err))
	}
	logCore.SetSession(m.Session().SessionID)
	m.SetDistractor(1, cfg.GetDefaultDistractor())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Println("type 'help' for commands")
	for m.State() != workflow.StateFinal {
		select {
		case <-ctx.Done():
			forceExit(m, log)
		case line, ok := <-lines:
			if !ok {
				forceExit(m, log)
				continue
			}
			handleCommand(m, frontend, line, log)
		}
	}
	log.Info("graceful shutdown complete")
}

// forceExit walks the machine to Final from wherever it is.
func forceExit(m *workflow.Machine, log *zap.Logger) {
	log.Info("shutting down")
	if m.State() == workflow.StateMeasuring {
		if err := m.Fire(workflow.EventStop); err != nil {
			log.Error("stop measurement", zap.Error(err))
		}
	}
	for m.State() != workflow.StateFinal {
		var e workflow.Event
		switch m.State() {
		case workflow.StateInitial:
			e = workflow.EventClose
		case workflow.StateConfirmExit, workflow.StateConfirmNoEvents, workflow.StateConfirmNotes, workflow.StateConfirmSession:
			e = workflow.EventYes
		case workflow.StateEventDetection, workflow.StateNotes:
			e = workflow.EventOK
		case workflow.StateChangeSession:
			e = workflow.EventCancel
		default:
			e = workflow.EventClose
		}
		if err := m.Fire(e); err != nil {
			log.Error("forced shutdown step failed", zap.Error(err))
			return
		}
	}
}

func handleCommand(m *workflow.Machine, frontend *consoleFrontend, line string, log *zap.Logger) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		fmt.Println(`commands:
  add-patient <id>   register a new patient
  patient <id>       select the active patient
  distractor <n>     select the distractor number
  notes <text>       set the notes text
  turns <count>      set the full turn count
  select <id>        pick a session in the session picker
  status             show live sample count
  start | stop | ok | yes | no | close | change-session | cancel`)

	case "add-patient":
		if len(args) != 1 {
			fmt.Println("usage: add-patient <id>")
			return
		}
		if err := m.AddPatient(args[0]); err != nil {
			if errors.Is(err, db.ErrPatientExists) {
				fmt.Println("patient already exists, pick another id")
				return
			}
			log.Error("add patient", zap.Error(err))
		}

	case "patient":
		if len(args) != 1 {
			fmt.Println("usage: patient <id>")
			return
		}
		m.SetPatient(args[0])

	case "distractor":
		if len(args) != 1 {
			fmt.Println("usage: distractor <n>")
			return
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fmt.Println("distractor number must be a positive integer")
			return
		}
		m.SetDistractor(n, db.DistractorKLSRED)

	case "notes":
		frontend.SetNotes(strings.Join(args, " "))

	case "turns":
		if len(args) != 1 {
			fmt.Println("usage: turns <count>")
			return
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			fmt.Println("turn count must be a number")
			return
		}
		frontend.SetFullTurnCount(v)

	case "select":
		if len(args) != 1 {
			fmt.Println("usage: select <session-id>")
			return
		}
		frontend.SetSelectedSession(args[0])
		fireEvent(m, workflow.EventSelect)

	case "status":
		n, last := frontend.Progress()
		fmt.Printf("state %s, %d samples, last torque %.3f Nm\n", m.State(), n, last)

	case "start", "stop", "ok", "yes", "no", "close", "change-session", "cancel":
		fireEvent(m, workflow.Event(cmd))

	default:
		fmt.Printf("unknown command %q, type 'help'\n", cmd)
	}
}

func fireEvent(m *workflow.Machine, e workflow.Event) {
	if err := m.Fire(e); err != nil {
		fmt.Printf("cannot %s now: %v\n", e, err)
	}
}

func writeReport(database *db.DB, documentID, outPath string, log *zap.Logger) {
	r, err := report.Build(database, documentID)
	if err != nil {
		log.Fatal("build report", zap.Error(err))
	}
	f, err := os.Create(outPath)
	if err != nil {
		log.Fatal("create report file", zap.Error(err))
	}
	defer f.Close()
	if err := r.WriteHTML(f); err != nil {
		log.Fatal("render report", zap.Error(err))
	}
	log.Info("report written",
		zap.String("document", documentID), zap.String("path", outPath), zap.Int("samples", r.Summary.Samples))
}
