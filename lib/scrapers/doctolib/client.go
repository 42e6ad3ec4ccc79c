package doctolib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
	"vaxbot/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/publicsuffix"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/89.0.4389.114 Safari/537.36"

type Client struct {
	Country Country
	Http    *resty.Client

	// Patient the appointment is booked for, picked by the caller
	// from Patients().
	Patient Patient

	username string
	password string
}

type ClientOptions struct {
	Country  Country
	Username string
	Password string
	// overrides Country.BaseURL, for tests
	BaseURL string
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseURL := opts.Country.BaseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", userAgent)
	client.SetHeader("sec-fetch-dest", "document")
	client.SetHeader("sec-fetch-mode", "navigate")
	client.SetHeader("sec-fetch-site", "same-origin")
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	c := &Client{
		Country:  opts.Country,
		Http:     client,
		username: opts.Username,
		password: opts.Password,
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.Http.BaseURL
}

// Login opens a session. When the account requires an email auth code
// and none is given, a code is requested and ErrTwoFactorRequired is
// returned; the caller should prompt for it and call SubmitCode.
func (c *Client) Login(ctx context.Context, code string) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get("/sessions/new")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open session page")
		return err
	}
	if err := checkCloudflare(res); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if res.IsError() {
		err := fmt.Errorf("session page: %s", res.Status())
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	res, err = c.Http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetBody(map[string]any{
			"kind":              "patient",
			"username":          c.username,
			"password":          c.password,
			"remember":          true,
			"remember_username": true,
		}).
		Post("/login.json")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login request failed")
		return err
	}
	if res.StatusCode() >= 400 && res.StatusCode() < 500 {
		span.SetStatus(codes.Error, "credentials rejected")
		return ErrBadCredentials
	}
	if res.IsError() {
		err := fmt.Errorf("login: %s", res.Status())
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	var body struct {
		Redirection string `json:"redirection"`
	}
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse login response")
		return err
	}

	if body.Redirection == "/sessions/two-factor" {
		if code != "" {
			return c.SubmitCode(ctx, code)
		}

		res, err = c.Http.R().
			SetContext(ctx).
			SetHeader("content-type", "application/json").
			SetBody(map[string]string{"two_factor_auth_method": "email"}).
			Post("/api/accounts/send_auth_code")
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to request auth code")
			return err
		}
		return ErrTwoFactorRequired
	}

	return nil
}

// SubmitCode answers the email auth code challenge.
func (c *Client) SubmitCode(ctx context.Context, code string) error {
	ctx, span := tracer.Start(ctx, "client:SubmitCode")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetBody(map[string]string{
			"auth_code":              code,
			"two_factor_auth_method": "email",
		}).
		Post("/login/challenge")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "challenge request failed")
		return err
	}
	if res.StatusCode() == http.StatusNotFound {
		span.SetStatus(codes.Error, "auth code rejected")
		return ErrInvalidCode
	}
	if res.IsError() {
		err := fmt.Errorf("challenge: %s", res.Status())
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Patients fetches the master patient list of the account.
func (c *Client) Patients(ctx context.Context) ([]Patient, error) {
	ctx, span := tracer.Start(ctx, "client:Patients")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get("/account/master_patients.json")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch patients")
		return nil, err
	}
	if res.IsError() {
		err := fmt.Errorf("master patients: %s", res.Status())
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var patients []Patient
	if err := json.Unmarshal(res.Body(), &patients); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse patients")
		return nil, err
	}
	return patients, nil
}

// checkCloudflare maps the cloudflare interstitial responses to a
// typed error so callers can tell a block from a transient failure.
func checkCloudflare(res *resty.Response) error {
	switch res.StatusCode() {
	case 503:
		if strings.Contains(res.Header().Get("Content-Type"), "text/html") &&
			(strings.Contains(res.String(), "cloudflare") ||
				strings.Contains(res.String(), "Checking your browser before accessing")) {
			return ScrapingBlockedError{Reason: "request blocked by cloudflare"}
		}
	case 520:
		return ScrapingBlockedError{Reason: "cloudflare is unable to reach the doctolib server, retry later"}
	}
	return nil
}
