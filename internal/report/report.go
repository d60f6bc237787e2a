// Package report renders a measurement document as an HTML chart with
// annotated event regions and summary statistics.
package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/stumelius/cranio-sub000/internal/db"
)

// Summary holds descriptive statistics over one recorded torque series.
type Summary struct {
	Samples   int
	DurationS float64
	MeanNm    float64
	StdNm     float64
	MinNm     float64
	MaxNm     float64
}

func (s Summary) String() string {
	return fmt.Sprintf("%d samples over %.1f s, torque mean %.2f Nm (std %.2f, min %.2f, max %.2f)",
		s.Samples, s.DurationS, s.MeanNm, s.StdNm, s.MinNm, s.MaxNm)
}

// Summarize computes summary statistics over a torque series. NaN
// samples from absorbed decode failures are excluded.
func Summarize(timeS, torque []float64) Summary {
	s := Summary{Samples: len(torque)}
	if len(timeS) > 1 {
		s.DurationS = timeS[len(timeS)-1] - timeS[0]
	}
	valid := make([]float64, 0, len(torque))
	for _, v := range torque {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		s.MeanNm, s.StdNm, s.MinNm, s.MaxNm = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return s
	}
	s.MeanNm = stat.Mean(valid, nil)
	s.StdNm = stat.StdDev(valid, nil)
	s.MinNm, s.MaxNm = valid[0], valid[0]
	for _, v := range valid[1:] {
		if v < s.MinNm {
			s.MinNm = v
		}
		if v > s.MaxNm {
			s.MaxNm = v
		}
	}
	return s
}

// Report bundles everything needed to render one document.
type Report struct {
	Document db.Document
	TimeS    []float64
	Torque   []float64
	Events   []db.AnnotatedEvent
	Summary  Summary
}

// Build loads a document with its time series and annotated events.
func Build(database *db.DB, documentID string) (*Report, error) {
	doc, err := database.DocumentByID(documentID)
	if err != nil {
		return nil, err
	}
	timeS, torque, err := database.RelatedTimeSeries(documentID)
	if err != nil {
		return nil, err
	}
	events, err := database.RelatedEvents(documentID)
	if err != nil {
		return nil, err
	}
	return &Report{
		Document: doc,
		TimeS:    timeS,
		Torque:   torque,
		Events:   events,
		Summary:  Summarize(timeS, torque),
	}, nil
}

// WriteHTML renders the report chart as a standalone HTML page.
func (r *Report) WriteHTML(w io.Writer) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: fmt.Sprintf("Document %s", r.Document.DocumentID),
			Width:     "1200px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Patient %s, distractor %d", r.Document.PatientID, r.Document.DistractorNumber),
			Subtitle: fmt.Sprintf("%s | %s",
				r.Document.StartedAt.Format("2006-01-02 15:04:05"), r.Summary),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time (s)", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "torque (Nm)", NameLocation: "middle", NameGap: 40}),
	)

	x := make([]string, len(r.TimeS))
	data := make([]opts.LineData, len(r.Torque))
	for i := range r.TimeS {
		x[i] = fmt.Sprintf("%.2f", r.TimeS[i])
		data[i] = opts.LineData{Value: r.Torque[i]}
	}

	seriesOpts := make([]charts.SeriesOpts, 0, len(r.Events))
	for _, e := range r.Events {
		seriesOpts = append(seriesOpts, charts.WithMarkAreaNameCoordItemOpts(opts.MarkAreaNameCoordItem{
			Name:        fmt.Sprintf("event %d", e.EventNum),
			Coordinate0: []interface{}{fmt.Sprintf("%.2f", e.Begin)},
			Coordinate1: []interface{}{fmt.Sprintf("%.2f", e.End)},
		}))
	}

	line.SetXAxis(x).AddSeries("torque (Nm)", data, seriesOpts...)
	return line.Render(w)
}
