package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"mevzuat/internal/models"
)

// ErrMalformedResponse is returned when a 2xx list response is not the
// expected JSON document.
var ErrMalformedResponse = errors.New("malformed list response")

// PageStatus discriminates the outcome of one list request.
type PageStatus int

// Page outcomes.
const (
	PageOK PageStatus = iota
	PageExhausted
	PageTransient
	PageRejected
)

func (s PageStatus) String() string {
	switch s {
	case PageOK:
		return "ok"
	case PageExhausted:
		return "exhausted"
	case PageTransient:
		return "transient"
	case PageRejected:
		return "rejected"
	default:
		return fmt.Sprintf("PageStatus(%d)", int(s))
	}
}

// PageQuery selects one page of a document type.
type PageQuery struct {
	DocumentType models.DocumentType
	Start        int
	Length       int
}

// PageResult is the discriminated outcome of FetchPage.
// Records is set only for PageOK and Err only for PageTransient and PageRejected.
type PageResult struct {
	Err        error
	Records    []models.Record
	Status     PageStatus
	Total      int
	StatusCode int
}

type listResponse struct {
	Data            []rawRow `json:"data"`
	Draw            int      `json:"draw"`
	RecordsTotal    int      `json:"recordsTotal"`
	RecordsFiltered int      `json:"recordsFiltered"`
}

type rawRow struct {
	MevzuatNo         flexString `json:"mevzuatNo"`
	MevAdi            flexString `json:"mevAdi"`
	ResmiGazeteTarihi flexString `json:"resmiGazeteTarihi"`
	ResmiGazeteSayisi flexString `json:"resmiGazeteSayisi"`
	MevzuatTur        flexString `json:"mevzuatTur"`
	MevzuatTertip     flexString `json:"mevzuatTertip"`
	URL               flexString `json:"url"`
}

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*f = flexString(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}

	*f = flexString(n.String())

	return nil
}

// FetchPage requests one page from the list endpoint.
func (c *Client) FetchPage(ctx context.Context, creds Credentials, q PageQuery) PageResult {
	log := c.logger.With("document_type", q.DocumentType, "start", q.Start, "length", q.Length)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"Content-Type":     "application/json; charset=UTF-8",
			"Accept":           "application/json, text/javascript, */*; q=0.01",
			"X-Requested-With": "XMLHttpRequest",
			"Origin":           c.origin,
			"Referer":          c.origin + "/",
		}).
		SetCookies(creds.Cookies).
		SetBody(c.buildSearchRequest(q, creds.Token)).
		Post(c.cfg.ListPath)
	if err != nil {
		log.Error("list request failed", "error", err)
		return PageResult{Status: PageTransient, Err: fmt.Errorf("%w: %w", ErrSourceUnavailable, err)}
	}

	result := c.classifyPage(q, resp.StatusCode(), resp.Header().Get("Content-Type"), resp.Body())

	switch result.Status {
	case PageOK:
		log.Info("list request successful", "records", len(result.Records), "total", result.Total)
	case PageExhausted:
		log.Info("list exhausted", "total", result.Total)
	default:
		log.Error("list request failed", "status", result.Status, "status_code", result.StatusCode, "error", result.Err)
	}

	return result
}

func (c *Client) classifyPage(q PageQuery, code int, contentType string, body []byte) PageResult {
	switch {
	case isRetryableStatus(code):
		return PageResult{Status: PageTransient, StatusCode: code, Err: fmt.Errorf("%w: %d", ErrSourceUnavailable, code)}
	case isRejectedStatus(code):
		return PageResult{Status: PageRejected, StatusCode: code, Err: fmt.Errorf("%w: %d", ErrSessionRejected, code)}
	case code < 200 || code > 299:
		return PageResult{Status: PageTransient, StatusCode: code, Err: fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, code)}
	}

	if err := c.checkBodySize(body); err != nil {
		return PageResult{Status: PageTransient, StatusCode: code, Err: err}
	}

	// An expired token gets an HTML page back with a 200.
	if !looksLikeJSON(contentType, body) {
		return PageResult{
			Status:     PageRejected,
			StatusCode: code,
			Err:        fmt.Errorf("%w: non-JSON response (%s)", ErrSessionRejected, contentType),
		}
	}

	var payload listResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return PageResult{
			Status:     PageRejected,
			StatusCode: code,
			Err:        fmt.Errorf("%w: %w: %w", ErrSessionRejected, ErrMalformedResponse, err),
		}
	}

	total := payload.RecordsFiltered
	if total == 0 {
		total = payload.RecordsTotal
	}

	if len(payload.Data) == 0 || (total > 0 && q.Start >= total) {
		return PageResult{Status: PageExhausted, StatusCode: code, Total: total}
	}

	rows := payload.Data
	if q.Length > 0 && len(rows) > q.Length {
		c.logger.Warn("source returned more rows than requested", "requested", q.Length, "received", len(rows))
		rows = rows[:q.Length]
	}

	records := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord(q.DocumentType))
	}

	return PageResult{Status: PageOK, StatusCode: code, Total: total, Records: records}
}

func (r rawRow) toRecord(documentType models.DocumentType) models.Record {
	return models.Record{
		Title:        strings.TrimSpace(string(r.MevAdi)),
		URLParams:    r.urlParams(),
		DocumentNo:   strings.TrimSpace(string(r.MevzuatNo)),
		GazetteDate:  strings.TrimSpace(string(r.ResmiGazeteTarihi)),
		GazetteNo:    strings.TrimSpace(string(r.ResmiGazeteSayisi)),
		DocumentType: documentType.String(),
	}
}

// urlParams returns the query string that identifies the document on the
// detail endpoint, rebuilding it from the row when the url is missing.
func (r rawRow) urlParams() string {
	raw := strings.TrimSpace(string(r.URL))
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[i+1:]
	}

	if strings.Contains(raw, "=") {
		return raw
	}

	return "MevzuatNo=" + url.QueryEscape(string(r.MevzuatNo)) +
		"&MevzuatTur=" + url.QueryEscape(string(r.MevzuatTur)) +
		"&MevzuatTertip=" + url.QueryEscape(string(r.MevzuatTertip))
}

func looksLikeJSON(contentType string, body []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasSuffix(mediaType, "json") {
		return true
	}

	trimmed := bytes.TrimSpace(body)

	return len(trimmed) > 0 && trimmed[0] == '{'
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}

	return statusCode >= 500 && statusCode <= 599
}

// isRejectedStatus reports statuses the portal uses for a bad or expired session.
func isRejectedStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, 419:
		return true
	}

	return false
}
