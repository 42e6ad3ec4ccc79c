package doctolib

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FindCenters walks the center search pages of the given (normalized)
// cities and resolves every listed center through the search_results
// endpoint.
//
// The search page is flaky behind cloudflare: a 503/520 there is
// logged and ends the walk for this round instead of failing the
// whole hunt. A 404 means the city slug does not exist.
func (c *Client) FindCenters(ctx context.Context, cities []string, motiveKeys []string) ([]Center, error) {
	ctx, span := tracer.Start(ctx, "client:FindCenters")
	defer span.End()

	if len(motiveKeys) == 0 {
		motiveKeys = c.Country.MotiveKeys()
	}

	var centers []Center
	for _, city := range cities {
		page := 1
		for page > 0 {
			ids, nextPage, err := c.searchPage(ctx, city, motiveKeys, page)
			if err != nil {
				var blocked ScrapingBlockedError
				if errors.As(err, &blocked) {
					slog.WarnContext(ctx, "center search blocked", "city", city, "reason", blocked.Reason)
					return centers, nil
				}
				span.RecordError(err)
				span.SetStatus(codes.Error, "center search failed")
				return centers, err
			}

			for _, id := range ids {
				center, ok, err := c.searchResult(ctx, id, motiveKeys)
				if err != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, "search result lookup failed")
					return centers, err
				}
				if ok {
					centers = append(centers, center)
				}
			}

			page = nextPage
		}
	}

	span.SetAttributes(attribute.Int("centers", len(centers)))
	return centers, nil
}

func (c *Client) searchPage(ctx context.Context, city string, motiveKeys []string, page int) (ids []int64, nextPage int, err error) {
	query := url.Values{}
	for _, key := range motiveKeys {
		query.Add("ref_visit_motive_ids[]", key)
	}
	query.Set("page", strconv.Itoa(page))

	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		Get(fmt.Sprintf("%s/%s", c.Country.SearchPath, url.PathEscape(city)))
	if err != nil {
		return nil, 0, err
	}
	if err := checkCloudflare(res); err != nil {
		return nil, 0, err
	}
	switch {
	case res.StatusCode() == http.StatusNotFound:
		return nil, 0, CityNotFoundError{City: city}
	case res.StatusCode() == 503 || res.StatusCode() == 520:
		// whitelisted even without the cloudflare markers
		return nil, 0, ScrapingBlockedError{Reason: res.Status()}
	case res.IsError():
		return nil, 0, fmt.Errorf("center search: %s", res.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, 0, err
	}

	if minutes, queued := parseWaitTime(doc); queued {
		return nil, 0, QueueError{Minutes: minutes}
	}

	return parseCenterIDs(doc), parseNextPage(doc), nil
}

func (c *Client) searchResult(ctx context.Context, id int64, motiveKeys []string) (Center, bool, error) {
	query := url.Values{}
	query.Set("limit", "4")
	for _, key := range motiveKeys {
		query.Add("ref_visit_motive_ids[]", key)
	}
	query.Set("speciality_id", "5494")
	query.Set("search_result_format", "json")

	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		Get(fmt.Sprintf("/search_results/%d.json", id))
	if err != nil {
		return Center{}, false, err
	}
	if res.IsError() {
		return Center{}, false, fmt.Errorf("search result %d: %s", id, res.Status())
	}

	var body struct {
		SearchResult *Center `json:"search_result"`
	}
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return Center{}, false, err
	}
	if body.SearchResult == nil {
		return Center{}, false, nil
	}
	return *body.SearchResult, true, nil
}

func parseWaitTime(doc *goquery.Document) (minutes int, queued bool) {
	value, exists := doc.Find("input#wait-time-value").Attr("value")
	if !exists {
		return 0, false
	}
	minutes, err := strconv.Atoi(value)
	if err != nil {
		return 0, true
	}
	return minutes, true
}

func parseCenterIDs(doc *goquery.Document) []int64 {
	var ids []int64
	doc.Find("div.js-dl-search-results-calendar").Each(func(_ int, div *goquery.Selection) {
		props := div.AttrOr("data-props", "")
		var data struct {
			SearchResultID int64 `json:"searchResultId"`
		}
		if err := json.Unmarshal([]byte(props), &data); err != nil {
			return
		}
		ids = append(ids, data.SearchResultID)
	})
	return ids
}

// parseNextPage finds the pagination target. The french variant hides
// the next link in a span's data-u attribute: whitespace-stripped,
// reversed, urlsafe base64.
func parseNextPage(doc *goquery.Document) int {
	page := 0
	doc.Find("div.next span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		encoded, exists := span.Attr("data-u")
		if !exists {
			return true
		}
		href, err := decodeObfuscatedHref(encoded)
		if err != nil {
			return true
		}
		if p, ok := pageFromHref(href); ok {
			page = p
			return false
		}
		return true
	})
	if page > 0 {
		return page
	}

	doc.Find("div.next a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, exists := a.Attr("href")
		if !exists {
			return true
		}
		if p, ok := pageFromHref(href); ok {
			page = p
			return false
		}
		return true
	})
	return page
}

func decodeObfuscatedHref(encoded string) (string, error) {
	stripped := make([]byte, 0, len(encoded))
	for _, b := range []byte(encoded) {
		switch b {
		case ' ', '\t', '\n', '\r':
		default:
			stripped = append(stripped, b)
		}
	}
	for i, j := 0, len(stripped)-1; i < j; i, j = i+1, j-1 {
		stripped[i], stripped[j] = stripped[j], stripped[i]
	}

	decoded, err := base64.URLEncoding.DecodeString(string(stripped))
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(string(stripped))
		if err != nil {
			return "", err
		}
	}
	return string(decoded), nil
}

func pageFromHref(href string) (int, bool) {
	link, err := url.Parse(href)
	if err != nil {
		return 0, false
	}
	page, err := strconv.Atoi(link.Query().Get("page"))
	if err != nil {
		return 0, false
	}
	return page, true
}
