// Package timestream stores metrics in Amazon Timestream, the
// authoritative time-series store.
package timestream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/timestreamquery"
	"github.com/aws/aws-sdk-go/service/timestreamwrite"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
	"github.com/aevon-lab/aevon-metrics/internal/core/aggregation"
	"github.com/aevon-lab/aevon-metrics/internal/core/storage"
)

type writeAPI interface {
	WriteRecordsWithContext(ctx aws.Context, in *timestreamwrite.WriteRecordsInput, opts ...request.Option) (*timestreamwrite.WriteRecordsOutput, error)
}

type queryAPI interface {
	QueryWithContext(ctx aws.Context, in *timestreamquery.QueryInput, opts ...request.Option) (*timestreamquery.QueryOutput, error)
}

// Config selects the Timestream table.
type Config struct {
	Region   string
	Endpoint string
	Database string
	Table    string
	// MaxRows caps rows per query page when the caller gives no limit.
	MaxRows int
}

// Adapter implements storage.MetricStore on Timestream.
// Records are append-only; updates rewrite the point with a higher version.
type Adapter struct {
	writer   writeAPI
	querier  queryAPI
	database string
	table    string
	maxRows  int

	now         func() time.Time
	mu          sync.Mutex
	lastVersion int64
}

var _ storage.MetricStore = (*Adapter)(nil)

// NewAdapter creates an adapter with clients built from an AWS session.
func NewAdapter(cfg Config) (*Adapter, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}

	slog.Info("[Timestream] Adapter initialized",
		"region", cfg.Region,
		"database", cfg.Database,
		"table", cfg.Table)

	return newAdapter(timestreamwrite.New(sess), timestreamquery.New(sess), cfg, time.Now), nil
}

func newAdapter(w writeAPI, q queryAPI, cfg Config, now func() time.Time) *Adapter {
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = v1.DefaultPageLimit
	}
	return &Adapter{
		writer:   w,
		querier:  q,
		database: cfg.Database,
		table:    cfg.Table,
		maxRows:  maxRows,
		now:      now,
	}
}

// nextVersion returns a strictly increasing record version based on the
// write clock, so a later write to the same point always wins.
func (a *Adapter) nextVersion() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := a.now().UnixNano()
	if v <= a.lastVersion {
		v = a.lastVersion + 1
	}
	a.lastVersion = v
	return v
}

// Create writes one multi-measure record per metric in batches and returns
// the metrics as the store will read them back. A reused id replaces its
// live point: when that point sits at another time or under other
// dimensions it is tombstoned first.
func (a *Adapter) Create(ctx context.Context, metrics []*v1.Metric) ([]*v1.Metric, error) {
	if err := a.supersede(ctx, metrics); err != nil {
		return nil, err
	}
	if err := a.write(ctx, metrics); err != nil {
		return nil, err
	}

	out := make([]*v1.Metric, 0, len(metrics))
	for _, m := range metrics {
		view, err := storedView(m)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

func (a *Adapter) write(ctx context.Context, metrics []*v1.Metric) error {
	for start := 0; start < len(metrics); start += maxRecordsPerWrite {
		end := start + maxRecordsPerWrite
		if end > len(metrics) {
			end = len(metrics)
		}

		records := make([]*timestreamwrite.Record, 0, end-start)
		for _, m := range metrics[start:end] {
			rec, err := buildRecord(m, a.nextVersion())
			if err != nil {
				return err
			}
			records = append(records, rec)
		}

		_, err := a.writer.WriteRecordsWithContext(ctx, &timestreamwrite.WriteRecordsInput{
			DatabaseName: aws.String(a.database),
			TableName:    aws.String(a.table),
			Records:      records,
		})
		if err != nil {
			slog.Error("[Timestream] WriteRecords failed",
				"records", len(records),
				"error", err)
			return err
		}
		slog.Debug("[Timestream] Wrote records", "records", len(records))
	}
	return nil
}

// supersede tombstones live points whose id is being written again at a
// different point. Rewrites of the same point need nothing: the higher
// version wins.
func (a *Adapter) supersede(ctx context.Context, metrics []*v1.Metric) error {
	incoming := make(map[string]*v1.Metric, len(metrics))
	ids := make([]string, 0, len(metrics))
	for _, m := range metrics {
		if _, seen := incoming[m.ID]; !seen {
			ids = append(ids, m.ID)
		}
		incoming[m.ID] = m
	}

	live, err := a.liveByID(ctx, ids)
	if err != nil {
		return err
	}

	var tombstones []*v1.Metric
	for _, current := range live {
		next := incoming[current.ID]
		if next == nil || samePoint(current, next) {
			continue
		}
		tombstone := current.Clone()
		tombstone.IsDeleted = true
		tombstones = append(tombstones, tombstone)
	}
	if len(tombstones) == 0 {
		return nil
	}

	slog.Debug("[Timestream] Tombstoning replaced points", "points", len(tombstones))
	if err := a.write(ctx, tombstones); err != nil {
		return fmt.Errorf("failed to tombstone replaced points: %w", err)
	}
	return nil
}

// liveByID returns every live point carrying one of ids.
func (a *Adapter) liveByID(ctx context.Context, ids []string) ([]*v1.Metric, error) {
	var out []*v1.Metric
	for start := 0; start < len(ids); start += maxRecordsPerWrite {
		end := start + maxRecordsPerWrite
		if end > len(ids) {
			end = len(ids)
		}

		q := a.buildLiveByIDQuery(ids[start:end])
		token := ""
		for {
			res, err := a.query(ctx, q, token, v1.MaxPageLimit)
			if err != nil {
				return nil, err
			}
			for _, row := range res.Rows {
				var m v1.Metric
				if err := decodeRow(res.ColumnInfo, row, metricSchema, &m); err != nil {
					return nil, fmt.Errorf("failed to decode metric row: %w", err)
				}
				out = append(out, &m)
			}
			token = aws.StringValue(res.NextToken)
			if token == "" {
				break
			}
		}
	}
	return out, nil
}

// samePoint reports whether two metrics land on the same Timestream record:
// same time at millisecond precision and same dimensions.
func samePoint(a, b *v1.Metric) bool {
	if a.TakenAt.UnixMilli() != b.TakenAt.UnixMilli() {
		return false
	}
	for _, field := range dimensionFields {
		if dimensionValue(a, field) != dimensionValue(b, field) {
			return false
		}
	}
	return true
}

// Read returns the newest live record for id.
func (a *Adapter) Read(ctx context.Context, id string) (*v1.Metric, error) {
	out, err := a.query(ctx, a.buildReadQuery(id), "", 1)
	if err != nil {
		return nil, err
	}
	if len(out.Rows) == 0 {
		return nil, storage.ErrNotFound
	}

	var m v1.Metric
	if err := decodeRow(out.ColumnInfo, out.Rows[0], metricSchema, &m); err != nil {
		return nil, fmt.Errorf("failed to decode metric row: %w", err)
	}
	return &m, nil
}

// Update merges patch into the live record. When takenAt moves, the old
// point is tombstoned before the merged record is written at the new time,
// so readers filtering isDeleted=false never see both as live.
//
// Read and write are not atomic. Two concurrent updates that both move
// takenAt read the same point, both tombstone it and leave two live points
// for the id; Read then returns the one with the later takenAt, not the
// later write. A later create of the id tombstones every live point; a
// later update or delete touches only the point it reads.
func (a *Adapter) Update(ctx context.Context, id string, patch v1.MetricPatch) (*v1.Metric, error) {
	current, err := a.Read(ctx, id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if v1.ApplyPatch(next, patch) {
		tombstone := current.Clone()
		tombstone.IsDeleted = true
		if err := a.write(ctx, []*v1.Metric{tombstone}); err != nil {
			return nil, fmt.Errorf("failed to tombstone previous point: %w", err)
		}
		slog.Debug("[Timestream] Tombstoned moved point",
			"metric_id", id,
			"old_taken_at", current.TakenAt,
			"new_taken_at", next.TakenAt)
	}

	if err := a.write(ctx, []*v1.Metric{next}); err != nil {
		return nil, err
	}
	return storedView(next)
}

// Delete tombstones the live record.
func (a *Adapter) Delete(ctx context.Context, id string) error {
	deleted := true
	_, err := a.Update(ctx, id, v1.MetricPatch{IsDeleted: &deleted})
	return err
}

// Search runs the filtered query. Without a client token the first page
// may come back empty with a NextToken while Timestream establishes the
// query; the query is re-issued with that token until rows or the end arrive.
func (a *Adapter) Search(ctx context.Context, filters v1.SearchFilters) (*v1.Page, error) {
	if filters.Offset > 0 && filters.NextToken == "" {
		return nil, v1.NewValidationError("offset", "offset paging is not supported, use nextToken")
	}

	limit := filters.EffectiveLimit(a.maxRows, v1.MaxPageLimit)
	out, err := a.query(ctx, a.buildSearchQuery(filters), filters.NextToken, limit)
	if err != nil {
		return nil, err
	}

	page := &v1.Page{Items: make([]*v1.Metric, 0, len(out.Rows))}
	for _, row := range out.Rows {
		var m v1.Metric
		if err := decodeRow(out.ColumnInfo, row, metricSchema, &m); err != nil {
			return nil, fmt.Errorf("failed to decode metric row: %w", err)
		}
		page.Items = append(page.Items, &m)
	}
	page.NextToken = aws.StringValue(out.NextToken)
	return page, nil
}

// Aggregate renders the plan with the Timestream dialect and decodes the
// grouped rows by column name. Pages are token driven, so offset is rejected.
func (a *Adapter) Aggregate(ctx context.Context, plan *aggregation.Plan) (*aggregation.Page, error) {
	if plan.Offset > 0 && plan.NextToken == "" {
		return nil, v1.NewValidationError("offset", "offset paging is not supported, use nextToken")
	}

	q, err := aggregation.BuildQuery(plan, dialect{}, a.from(), renderWhere(plan.Filters))
	if err != nil {
		return nil, err
	}

	out, err := a.query(ctx, q, plan.NextToken, plan.Limit)
	if err != nil {
		return nil, err
	}

	schema := bucketSchema(plan.IsTime())
	page := &aggregation.Page{Buckets: make([]aggregation.Bucket, 0, len(out.Rows))}
	for _, row := range out.Rows {
		var b aggregation.Bucket
		if err := decodeRow(out.ColumnInfo, row, schema, &b); err != nil {
			return nil, fmt.Errorf("failed to decode aggregate row: %w", err)
		}
		page.Buckets = append(page.Buckets, b)
	}
	page.NextToken = aws.StringValue(out.NextToken)
	return page, nil
}

// query executes q. A client token is used for exactly one call. Errors
// are logged with the query text and returned unwrapped.
func (a *Adapter) query(ctx context.Context, q, token string, maxRows int) (*timestreamquery.QueryOutput, error) {
	next := token
	for {
		in := &timestreamquery.QueryInput{
			QueryString: aws.String(q),
			MaxRows:     aws.Int64(int64(maxRows)),
		}
		if next != "" {
			in.NextToken = aws.String(next)
		}

		out, err := a.querier.QueryWithContext(ctx, in)
		if err != nil {
			slog.Error("[Timestream] Query failed",
				"query", q,
				"error", err)
			return nil, err
		}
		if token != "" || len(out.Rows) > 0 || aws.StringValue(out.NextToken) == "" {
			return out, nil
		}
		next = aws.StringValue(out.NextToken)
	}
}
