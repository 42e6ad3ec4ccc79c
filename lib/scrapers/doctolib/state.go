package doctolib

import (
	"context"
	"net/http"
	"net/url"
)

// Cookies exports the session cookies held for the site so a later
// run can pick up an authenticated session without logging in again.
func (c *Client) Cookies() []*http.Cookie {
	jar := c.Http.GetClient().Jar
	if jar == nil {
		return nil
	}
	site, err := url.Parse(c.BaseURL())
	if err != nil {
		return nil
	}
	return jar.Cookies(site)
}

// RestoreCookies seeds the client with cookies from a previous run.
func (c *Client) RestoreCookies(cookies []*http.Cookie) {
	jar := c.Http.GetClient().Jar
	if jar == nil || len(cookies) == 0 {
		return
	}
	site, err := url.Parse(c.BaseURL())
	if err != nil {
		return
	}
	jar.SetCookies(site, cookies)
}

// LoggedIn probes the master patient endpoint to tell whether a
// restored session is still valid.
func (c *Client) LoggedIn(ctx context.Context) bool {
	res, err := c.Http.R().
		SetContext(ctx).
		Get("/account/master_patients.json")
	return err == nil && res.IsSuccess()
}
