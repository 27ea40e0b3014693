// Package export streams filtered metrics into a gzip-compressed CSV in
// object storage and emails the requester a signed download link.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
	"github.com/aevon-lab/aevon-metrics/internal/mailer"
	"github.com/aevon-lab/aevon-metrics/internal/metric"
)

const (
	DefaultPageSize = 10000
	DefaultLinkTTL  = 24 * time.Hour
	DefaultLocale   = "en"
)

// State is a step of the export state machine.
type State string

const (
	StateInit                  State = "INIT"
	StateFetching              State = "FETCHING"
	StateEnriching             State = "ENRICHING"
	StateWriting               State = "WRITING"
	StateFinalizingCompression State = "FINALIZING_COMPRESSION"
	StateUploading             State = "UPLOADING"
	StateLinkSigning           State = "LINK_SIGNING"
	StateNotifying             State = "NOTIFYING"
	StateDone                  State = "DONE"
	StateFailed                State = "FAILED"
)

// MetricSource pages through stored metrics. The relational mirror in
// production.
type MetricSource interface {
	Search(ctx context.Context, filters v1.SearchFilters) (*v1.Page, error)
}

// Coordinator supplies reference-data resolution.
type Coordinator interface {
	ResolveFilterCodes(ctx context.Context, f *v1.SearchFilters) (bool, error)
	GetMetricCodeMaps(ctx context.Context, rows []*v1.Metric) (metric.CodeMaps, error)
}

// Uploader streams a file to object storage and signs download links.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Mailer delivers notifications.
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type Options struct {
	PageSize      int
	LinkTTL       time.Duration
	DefaultLocale string
	FromEmail     string
	Labels        Labels
}

// Report describes a finished export.
type Report struct {
	JobID     string    `json:"jobId"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
	Rows      int64     `json:"rows"`
	Bytes     int64     `json:"bytes"`
	Pages     int       `json:"pages"`
}

type Engine struct {
	source      MetricSource
	coordinator Coordinator
	uploader    Uploader
	mailer      Mailer
	emails      EmailLookup
	metrics     *instruments
	opts        Options

	now   func() time.Time
	newID func() string
}

// NewEngine wires the export engine. emails may be nil, in which case
// requests must carry the requester's email.
func NewEngine(
	source MetricSource,
	coordinator Coordinator,
	uploader Uploader,
	m Mailer,
	emails EmailLookup,
	reg prometheus.Registerer,
	opts Options,
) *Engine {
	if source == nil || coordinator == nil || uploader == nil || m == nil {
		panic("export: source, coordinator, uploader and mailer are required")
	}
	if opts.PageSize <= 0 || opts.PageSize > v1.MaxScanPageLimit {
		opts.PageSize = DefaultPageSize
	}
	if opts.LinkTTL <= 0 {
		opts.LinkTTL = DefaultLinkTTL
	}
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = DefaultLocale
	}
	if opts.Labels == nil {
		opts.Labels = DefaultLabels()
	}
	return &Engine{
		source:      source,
		coordinator: coordinator,
		uploader:    uploader,
		mailer:      m,
		emails:      emails,
		metrics:     newInstruments(reg),
		opts:        opts,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// job is the state of one Generate call.
type job struct {
	id     string
	state  State
	report Report
}

func (j *job) transition(to State) {
	slog.Debug("[Export] State transition", "job_id", j.id, "from", j.state, "to", to)
	j.state = to
}

// Generate runs one export to completion. Pages are fetched strictly in
// sequence; each page's last row is the exclusive keyset bound of the next.
// Any failure is a *ServerError.
func (e *Engine) Generate(ctx context.Context, msg JobMessage) (*Report, error) {
	j := &job{id: e.newID(), state: StateInit}
	j.report.JobID = j.id
	j.report.Key = fmt.Sprintf("%s/%s.csv.gz", msg.Params.OrgID, j.id)
	start := time.Now()

	slog.Info("[Export] Job started", "job_id", j.id, "org_id", msg.Params.OrgID, "columns", len(msg.Columns))

	err := e.run(ctx, j, msg)
	if err != nil {
		var serr *ServerError
		if !errors.As(err, &serr) {
			serr = newServerError(StepWrite, err)
		}
		j.transition(StateFailed)
		e.metrics.jobs.WithLabelValues("failed").Inc()
		e.metrics.failures.WithLabelValues(string(serr.Step)).Inc()
		slog.Error("[Export] Job failed",
			"job_id", j.id,
			"step", serr.Step,
			"message_key", serr.MessageKey,
			"rows", j.report.Rows,
			"error", serr.Err,
		)
		e.notifyFailure(ctx, j, msg, serr)
		return nil, serr
	}

	j.transition(StateDone)
	e.metrics.jobs.WithLabelValues("done").Inc()
	slog.Info("[Export] Job done",
		"job_id", j.id,
		"rows", j.report.Rows,
		"bytes", j.report.Bytes,
		"pages", j.report.Pages,
		"duration", time.Since(start),
	)
	report := j.report
	return &report, nil
}

func (e *Engine) run(ctx context.Context, j *job, msg JobMessage) error {
	columns := msg.Columns
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	if err := ValidateColumns(columns); err != nil {
		return newServerError(StepWrite, err)
	}

	filters := msg.Params
	matchable, err := e.coordinator.ResolveFilterCodes(ctx, &filters)
	if err != nil {
		return newServerError(StepBatchFetch, err)
	}

	// The upload is opened before the first byte. The pipe blocks the
	// producer whenever the uploader falls behind.
	pr, pw := io.Pipe()
	uploadDone := make(chan error, 1)
	go func() {
		err := e.uploader.Upload(ctx, j.report.Key, pr)
		pr.CloseWithError(err)
		uploadDone <- err
	}()

	counter := &countingWriter{w: pw}
	if err := e.produce(ctx, j, filters, matchable, columns, msg.Locale, counter); err != nil {
		// Failing the body makes the uploader abort the multipart upload.
		pw.CloseWithError(err)
		uploadErr := <-uploadDone
		if counter.err != nil {
			// The uploader stopped reading first; the write error is its echo.
			if uploadErr == nil {
				uploadErr = counter.err
			}
			return newServerError(StepUpload, uploadErr)
		}
		return err
	}
	pw.Close()

	j.transition(StateUploading)
	if err := <-uploadDone; err != nil {
		return newServerError(StepUpload, err)
	}
	j.report.Bytes = counter.n
	e.metrics.bytes.Add(float64(counter.n))

	j.transition(StateLinkSigning)
	url, err := e.uploader.SignedURL(ctx, j.report.Key, e.opts.LinkTTL)
	if err != nil {
		return newServerError(StepLinkSigning, err)
	}
	j.report.URL = url
	j.report.ExpiresAt = e.now().Add(e.opts.LinkTTL)

	j.transition(StateNotifying)
	if err := e.mailer.Send(ctx, mailer.Message{
		From:    e.opts.FromEmail,
		To:      []string{msg.Email},
		Subject: "Your metrics export is ready",
		Body: fmt.Sprintf("Your export of %d metrics is ready.\r\n\r\nDownload: %s\r\nThis link expires at %s.\r\n",
			j.report.Rows, url, j.report.ExpiresAt.Format(time.RFC3339)),
	}); err != nil {
		return newServerError(StepEmailSend, err)
	}
	return nil
}

// produce writes the header and every page into w through gzip, then
// closes the gzip stream.
func (e *Engine) produce(
	ctx context.Context,
	j *job,
	filters v1.SearchFilters,
	matchable bool,
	columns []string,
	locale string,
	w io.Writer,
) error {
	gz := gzip.NewWriter(w)
	cw := newCSVWriter(gz)

	if locale == "" {
		locale = e.opts.DefaultLocale
	}
	if err := cw.Write(e.opts.Labels.Header(columns, locale, e.opts.DefaultLocale)); err != nil {
		return newServerError(StepWrite, err)
	}

	var cursor *v1.Cursor
	row := make([]string, len(columns))
	for matchable {
		j.transition(StateFetching)
		page, err := e.source.Search(ctx, scanFilters(filters, cursor, e.opts.PageSize))
		if err != nil {
			return newServerError(StepBatchFetch, err)
		}
		if len(page.Items) == 0 {
			break
		}
		j.report.Pages++

		j.transition(StateEnriching)
		codes, err := e.coordinator.GetMetricCodeMaps(ctx, page.Items)
		if err != nil {
			return newServerError(StepCodeEnrichment, err)
		}

		j.transition(StateWriting)
		for _, m := range page.Items {
			m.MetricTypeCode = codes.Types[m.MetricTypeID]
			m.MetricCategoryCode = codes.Categories[m.MetricCategoryID]
			if row, err = Record(m, columns, row); err != nil {
				return newServerError(StepWrite, err)
			}
			if err := cw.Write(row); err != nil {
				return newServerError(StepWrite, err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return newServerError(StepWrite, err)
		}
		j.report.Rows += int64(len(page.Items))
		e.metrics.rows.Add(float64(len(page.Items)))

		last := page.Items[len(page.Items)-1]
		cursor = &v1.Cursor{TakenAt: last.TakenAt, ID: last.ID}
		slog.Debug("[Export] Page written", "job_id", j.id, "page", j.report.Pages, "rows", len(page.Items))
	}

	j.transition(StateFinalizingCompression)
	cw.Flush()
	if err := cw.Error(); err != nil {
		return newServerError(StepWrite, err)
	}
	if err := gz.Close(); err != nil {
		return newServerError(StepWrite, err)
	}
	return nil
}

// scanFilters is one keyset page in descending (takenAt, id) order.
func scanFilters(base v1.SearchFilters, cursor *v1.Cursor, pageSize int) v1.SearchFilters {
	f := base
	f.Scan = true
	f.Limit = pageSize
	f.Offset = 0
	f.NextToken = ""
	f.Sort = []string{v1.FieldTakenAt + ":desc"}
	f.IncludeTotal = false
	f.Before = cursor
	return f
}

// notifyFailure tells the requester the export failed. Best effort; the job
// has already failed.
func (e *Engine) notifyFailure(ctx context.Context, j *job, msg JobMessage, serr *ServerError) {
	if serr.Step == StepEmailSend || msg.Email == "" {
		return
	}
	err := e.mailer.Send(ctx, mailer.Message{
		From:    e.opts.FromEmail,
		To:      []string{msg.Email},
		Subject: "Your metrics export failed",
		Body:    fmt.Sprintf("Your export could not be completed (%s). Please request it again.\r\n", serr.MessageKey),
	})
	if err != nil {
		slog.Warn("[Export] Failure notification not sent", "job_id", j.id, "error", err)
	}
}
