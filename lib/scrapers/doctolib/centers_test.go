package doctolib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func docFromString(t testing.TB, html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestDecodeObfuscatedHref(t *testing.T) {
	href, err := decodeObfuscatedHref(`=UDMwcTPEVTJCVTJzRWafVmdpR3bt9FdpNXa29lZlJnJwcTO20DR1UiQ
1Uyckl2XlZXa09WbfRXazlmdfZWZyZiM9U2ZhB3PlNmbhJnZvMXZylWY0lmc
vlmcw1ycu9WazNXZm9mcw1yclJHd1FWL5ETLklmdvNWLu9Wa0FmbpN2YhZ3L`)
	require.NoError(t, err)
	require.Equal(
		t,
		"/vaccination-covid-19-autres-professions-prioritaires/france?page=2&ref_visit_motive_ids%5B%5D=6970&ref_visit_motive_ids%5B%5D=7005",
		href,
	)
}

func TestParseNextPageObfuscated(t *testing.T) {
	testCases := []struct {
		name     string
		html     string
		expected int
	}{
		{
			name: "page 1 to 2",
			html: `
				<div class="next-previous-links">
					<div class="previous dl-rounded-borders dl-white-bg">
						<span class="disabled">Précédent</span>
					</div>
					<div class="next dl-rounded-borders dl-white-bg">
						<span data-u="=UDMwcTPEVTJCVTJzRWafVmdpR3bt9FdpNXa29lZlJnJwcTO20DR1UiQ
1Uyckl2XlZXa09WbfRXazlmdfZWZyZiM9U2ZhB3PlNmbhJnZvMXZylWY0lmc
vlmcw1ycu9WazNXZm9mcw1yclJHd1FWL5ETLklmdvNWLu9Wa0FmbpN2YhZ3L">Suivant</span>
					</div>
				</div>`,
			expected: 2,
		},
		{
			name: "page 2 to 3",
			html: `
				<div class="next-previous-links">
					<div class="previous dl-rounded-borders dl-white-bg">
						<span data-u="==QNwAzN9QUNlIUNlMHZp9VZ2lGdv12X0l2cpZ3XmVmcmAzN
5YTPEVTJCVTJzRWafVmdpR3bt9FdpNXa29lZlJ3PlNmbhJnZvMXZylWY0lmc
vlmcw1ycu9WazNXZm9mcw1yclJHd1FWL5ETLklmdvNWLu9Wa0FmbpN2YhZ3L">Précédent</span>
					</div>
					<div class="next dl-rounded-borders dl-white-bg">
						<span data-u="=UDMwcTPEVTJCVTJzRWafVmdpR3bt9FdpNXa29lZlJnJwcTO20DR1UiQ
1Uyckl2XlZXa09WbfRXazlmdfZWZyZyM9U2ZhB3PlNmbhJnZvMXZylWY0lmc
vlmcw1ycu9WazNXZm9mcw1yclJHd1FWL5ETLklmdvNWLu9Wa0FmbpN2YhZ3L">Suivant</span>
					</div>
				</div>`,
			expected: 3,
		},
		{
			name: "page 3 to 4",
			html: `
				<div class="next-previous-links">
					<div class="previous dl-rounded-borders dl-white-bg">
						<span data-u="=UDMwcTPEVTJCVTJzRWafVmdpR3bt9FdpNXa29lZlJnJwcTO20DR1UiQ
1Uyckl2XlZXa09WbfRXazlmdfZWZyZiM9U2ZhB3PlNmbhJnZvMXZylWY0lmc
vlmcw1ycu9WazNXZm9mcw1yclJHd1FWL5ETLklmdvNWLu9Wa0FmbpN2YhZ3L">Précédent</span>
					</div>
					<div class="next dl-rounded-borders dl-white-bg">
						<span data-u="=UDMwcTPEVTJCVTJzRWafVmdpR3bt9FdpNXa29lZlJnJwcTO20DR1UiQ
1Uyckl2XlZXa09WbfRXazlmdfZWZyZCN9U2ZhB3PlNmbhJnZvMXZylWY0lmc
vlmcw1ycu9WazNXZm9mcw1yclJHd1FWL5ETLklmdvNWLu9Wa0FmbpN2YhZ3L">Suivant</span>
					</div>
				</div>`,
			expected: 4,
		},
		{
			name: "last page",
			html: `
				<div class="next-previous-links">
					<div class="previous dl-rounded-borders dl-white-bg">
						<span data-u="=UDMwcTPEVTJCVTJzRWafVmdpR3bt9FdpNXa29lZlJnJwcTO20DR1UiQ
1Uyckl2XlZXa09WbfRXazlmdfZWZyZyN9U2ZhB3PlNmbhJnZvMXZylWY0lmc
vlmcw1ycu9WazNXZm9mcw1yclJHd1FWL5ETLklmdvNWLu9Wa0FmbpN2YhZ3L">Précédent</span>
					</div>
					<div class="next dl-rounded-borders dl-white-bg">
						<span class="disabled">Suivant</span>
					</div>
				</div>`,
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc := docFromString(t, tc.html)
			require.Equal(t, tc.expected, parseNextPage(doc))
		})
	}
}

func TestParseNextPagePlainLinks(t *testing.T) {
	testCases := []struct {
		name     string
		html     string
		expected int
	}{
		{
			name: "page 1 to 2",
			html: `
				<div class="next-previous-links">
					<div class="previous"><span class="disabled">vorherige Seite</span></div>
					<div class="next">
						<a href="/impfung-covid-19-corona/berlin?page=2&amp;ref_visit_motive_ids%5B%5D=6769">Nächste Seite</a>
					</div>
				</div>`,
			expected: 2,
		},
		{
			name: "page 2 to 3",
			html: `
				<div class="next-previous-links">
					<div class="previous">
						<a href="/impfung-covid-19-corona/berlin?ref_visit_motive_ids%5B%5D=6769">vorherige Seite</a>
					</div>
					<div class="next">
						<a href="/impfung-covid-19-corona/berlin?page=3&amp;ref_visit_motive_ids%5B%5D=6769">Nächste Seite</a>
					</div>
				</div>`,
			expected: 3,
		},
		{
			name: "last page",
			html: `
				<div class="next-previous-links">
					<div class="previous">
						<a href="/impfung-covid-19-corona/berlin?page=5&amp;ref_visit_motive_ids%5B%5D=6769">vorherige Seite</a>
					</div>
					<div class="next"><span class="disabled">Nächste Seite</span></div>
				</div>`,
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc := docFromString(t, tc.html)
			require.Equal(t, tc.expected, parseNextPage(doc))
		})
	}
}

func TestParseWaitTime(t *testing.T) {
	doc := docFromString(t, `
		<main>
			<h1>Merci de patienter quelques instants</h1>
			<input id="wait-time-value" type="hidden" value="5"/>
		</main>`)
	minutes, queued := parseWaitTime(doc)
	require.True(t, queued)
	require.Equal(t, 5, minutes)

	doc = docFromString(t, `<main><div class="results"></div></main>`)
	_, queued = parseWaitTime(doc)
	require.False(t, queued)
}

func TestParseCenterIDs(t *testing.T) {
	doc := docFromString(t, `
		<div class="js-dl-search-results-calendar" data-props="{&quot;searchResultId&quot;:1234567}"></div>
		<div class="js-dl-search-results-calendar" data-props="{&quot;searchResultId&quot;:7654321}"></div>`)
	require.Equal(t, []int64{1234567, 7654321}, parseCenterIDs(doc))
}

func newTestClient(t testing.TB, country Country, baseURL string) *Client {
	client, err := NewClient(context.Background(), ClientOptions{
		Country:  country,
		Username: "roger.phillibert@gmail.com",
		Password: "1234",
		BaseURL:  baseURL,
	})
	require.NoError(t, err)
	return client
}

func TestFindCentersBlockedStatusEndsWalk(t *testing.T) {
	for _, status := range []int{503, 520} {
		t.Run(fmt.Sprintf("status %d", status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer srv.Close()

			client := newTestClient(t, France, srv.URL)
			centers, err := client.FindCenters(context.Background(), []string{"paris"}, nil)
			require.NoError(t, err)
			require.Empty(t, centers)
		})
	}
}

func TestFindCentersServerErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(502)
	}))
	defer srv.Close()

	client := newTestClient(t, France, srv.URL)
	_, err := client.FindCenters(context.Background(), []string{"paris"}, nil)
	require.Error(t, err)
}

func TestFindCentersUnknownCity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer srv.Close()

	client := newTestClient(t, France, srv.URL)
	_, err := client.FindCenters(context.Background(), []string{"atlantis"}, nil)
	require.ErrorIs(t, err, CityNotFoundError{City: "atlantis"})
}

func TestFindCenters(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/vaccination-covid-19/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, France.MotiveKeys(), r.URL.Query()["ref_visit_motive_ids[]"])
		fmt.Fprint(w, `<div class="js-dl-search-results-calendar" data-props="{&quot;searchResultId&quot;:1234567}"></div>`)
	})
	mux.HandleFunc("/search_results/1234567.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"search_result": map[string]any{
				"url":             srv.URL + "/vaccination-covid-19/paris/centre-alpha",
				"name_with_title": "Centre Alpha",
				"city":            "Paris",
				"zipcode":         "75004",
				"address":         "1 rue de Rivoli",
			},
		})
	})

	client := newTestClient(t, France, srv.URL)
	centers, err := client.FindCenters(context.Background(), []string{"paris"}, nil)
	require.NoError(t, err)
	require.Len(t, centers, 1)
	require.Equal(t, "Centre Alpha", centers[0].Name)
	require.Equal(t, "75004", centers[0].Zipcode)
}
