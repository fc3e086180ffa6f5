package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"mevzuat/internal/models"
)

// ErrMissingURLParams is returned for records that cannot be located on the
// detail endpoint.
var ErrMissingURLParams = errors.New("record has no url params")

// TextFailure is a record whose text could not be fetched.
type TextFailure struct {
	Err    error
	Record models.Record
}

// TextResult partitions a text fetch into enriched and failed records.
// Order within each slice follows the input order.
type TextResult struct {
	Enriched []models.Record
	Failed   []TextFailure
}

// FetchTexts enriches every record it can. Failures are logged and returned
// alongside the successes; nothing is retried.
func (c *Client) FetchTexts(ctx context.Context, creds Credentials, records []models.Record) TextResult {
	result := TextResult{
		Enriched: make([]models.Record, 0, len(records)),
	}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			for _, rest := range records[i:] {
				result.Failed = append(result.Failed, TextFailure{Record: rest, Err: err})
			}

			break
		}

		enriched, err := c.FetchText(ctx, creds, rec)
		if err != nil {
			c.logger.Warn("text fetch failed",
				"mevzuat_no", rec.DocumentNo,
				"url_params", rec.URLParams,
				"error", err,
			)
			result.Failed = append(result.Failed, TextFailure{Record: rec, Err: err})

			continue
		}

		result.Enriched = append(result.Enriched, enriched)
	}

	c.logger.Info("text fetch finished", "enriched", len(result.Enriched), "failed", len(result.Failed))

	return result
}

// FetchText fetches and extracts the text of one record. The returned record
// carries the text and the resolved document URL.
func (c *Client) FetchText(ctx context.Context, creds Credentials, rec models.Record) (models.Record, error) {
	params := strings.TrimSpace(rec.URLParams)
	if params == "" {
		return rec, ErrMissingURLParams
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Referer", c.origin+"/").
		SetCookies(creds.Cookies).
		SetQueryString(params).
		Get(c.cfg.DetailPath)
	if err != nil {
		return rec, fmt.Errorf("detail request failed: %w", err)
	}

	if resp.IsError() {
		return rec, fmt.Errorf("detail request: %w: %d", ErrUnexpectedStatusCode, resp.StatusCode())
	}

	body := resp.Body()
	if err := c.checkBodySize(body); err != nil {
		return rec, err
	}

	documentURL := c.DocumentURL(params)

	pageURL, err := url.Parse(documentURL)
	if err != nil {
		return rec, fmt.Errorf("invalid document url: %w", err)
	}

	text, err := c.extractor.Extract(bytes.NewReader(body), pageURL)
	if err != nil {
		return rec, err
	}

	rec.Text = text
	rec.URL = documentURL

	return rec, nil
}
