package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	v1 "github.com/aevon-lab/aevon-metrics/internal/api/v1"
)

// TimeLayout is ISO-8601 in UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z"

func newCSVWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	return cw
}

// FormatCell stringifies one value: nil is empty, times are UTC ISO-8601,
// maps and slices are JSON, everything else is its plain text form.
func FormatCell(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case time.Time:
		return val.UTC().Format(TimeLayout), nil
	case *time.Time:
		if val == nil {
			return "", nil
		}
		return val.UTC().Format(TimeLayout), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case bool:
		return strconv.FormatBool(val), nil
	case map[string]interface{}, []interface{}, []string:
		return marshalJSON(val)
	default:
		return fmt.Sprint(val), nil
	}
}

func marshalJSON(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// Record renders m as one CSV row. dst is reused when large enough.
func Record(m *v1.Metric, columns []string, dst []string) ([]string, error) {
	if cap(dst) < len(columns) {
		dst = make([]string, len(columns))
	}
	dst = dst[:len(columns)]
	for i, column := range columns {
		cell, err := FormatCell(m.Get(column))
		if err != nil {
			return nil, fmt.Errorf("failed to format %s of metric %s: %w", column, m.ID, err)
		}
		dst[i] = cell
	}
	return dst, nil
}

// countingWriter counts bytes that reach the upload stream and keeps the
// first write error.
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil && c.err == nil {
		c.err = err
	}
	return n, err
}
