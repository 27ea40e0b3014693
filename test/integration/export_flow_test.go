//go:build integration

package integration

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExportFlow_DeliversEveryRowAcrossPages(t *testing.T) {
	h := startHarness(t)
	defer h.close(t)

	base := time.Now().UTC().Truncate(time.Second).Add(-24 * time.Hour)
	inputs := make([]map[string]interface{}, 0, 120)
	for i := 0; i < 120; i++ {
		inputs = append(inputs, map[string]interface{}{
			"orgId":          "org-export",
			"userId":         fmt.Sprintf("u%d", i%4),
			"metricTypeCode": "heart_rate",
			"value":          60 + i%30,
			// Pairs of rows share a timestamp so page boundaries land on ties.
			"takenAt":  base.Add(time.Duration(i/2) * time.Minute),
			"metadata": map[string]interface{}{"note": fmt.Sprintf("row %d, \"quoted\"", i)},
		})
	}
	status, body := sendJSON(t, h.client, http.MethodPost, h.baseURL+"/v1/metrics", inputs)
	require.Equal(t, http.StatusCreated, status, string(body))

	req, err := http.NewRequest(http.MethodPost, h.baseURL+"/v1/metrics/export", strings.NewReader(
		`{"filters":{"orgId":"org-export","metricTypeCodes":["heart_rate"]},"columns":["id","metricTypeCode","value","takenAt","metadata.note"]}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "u0")
	req.Header.Set("X-Org-Id", "org-export")
	req.Header.Set("X-User-Email", "analyst@example.com")
	req.Header.Set("Accept-Language", "fr-CA,fr;q=0.9")

	resp, err := h.client.Do(req)
	require.NoError(t, err)
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(respBody))

	var accepted struct {
		Status string `json:"status"`
		Email  string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(respBody, &accepted))
	require.Equal(t, "queued", accepted.Status)
	require.Equal(t, "analyst@example.com", accepted.Email)

	require.Eventually(t, func() bool { return len(h.mail.messages()) == 1 }, 10*time.Second, 50*time.Millisecond)
	msg := h.mail.messages()[0]
	require.Equal(t, []string{"analyst@example.com"}, msg.To)
	require.Contains(t, msg.Body, "120 metrics")

	start := strings.Index(msg.Body, "http://exports.local/")
	require.GreaterOrEqual(t, start, 0)
	key := strings.TrimPrefix(msg.Body[start:], "http://exports.local/")
	key = key[:strings.Index(key, "?")]
	require.True(t, strings.HasPrefix(key, "org-export/"))

	gz, err := gzip.NewReader(bytes.NewReader(h.uploads.get(key)))
	require.NoError(t, err)
	records, err := csv.NewReader(gz).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 121)
	require.Equal(t, []string{"ID", "Type", "Valeur", "Mesuré le", "metadata.note"}, records[0])

	seen := make(map[string]struct{}, 120)
	prev := ""
	for _, rec := range records[1:] {
		require.Equal(t, "heart_rate", rec[1])
		seen[rec[0]] = struct{}{}
		if prev != "" {
			require.LessOrEqual(t, rec[3], prev, "rows must be newest first")
		}
		prev = rec[3]
		require.Contains(t, rec[4], "\"quoted\"")
	}
	require.Len(t, seen, 120)
}

func TestExportFlow_RejectsOrgMismatch(t *testing.T) {
	h := startHarness(t)
	defer h.close(t)

	req, err := http.NewRequest(http.MethodPost, h.baseURL+"/v1/metrics/export",
		strings.NewReader(`{"filters":{"orgId":"someone-else"}}`))
	require.NoError(t, err)
	req.Header.Set("X-User-Id", "u0")
	req.Header.Set("X-Org-Id", "org-export")
	req.Header.Set("X-User-Email", "analyst@example.com")

	resp, err := h.client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, h.mail.messages())
}
