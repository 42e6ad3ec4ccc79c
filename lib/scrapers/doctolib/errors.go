package doctolib

import (
	"errors"
	"fmt"
)

var (
	// ErrBadCredentials is returned when the login endpoint rejects
	// the username/password pair.
	ErrBadCredentials = errors.New("wrong login/password")
	// ErrTwoFactorRequired is returned when the account requires an
	// email auth code. A code has already been requested when this
	// error is returned.
	ErrTwoFactorRequired = errors.New("auth code required")
	// ErrInvalidCode is returned when the challenge endpoint rejects
	// the submitted auth code.
	ErrInvalidCode = errors.New("invalid auth code")
)

// ScrapingBlockedError indicates cloudflare refused to let us through.
type ScrapingBlockedError struct {
	Reason string
}

func (e ScrapingBlockedError) Error() string {
	return fmt.Sprintf("scraping blocked: %s", e.Reason)
}

// CityNotFoundError indicates the center search page 404'd for a city.
type CityNotFoundError struct {
	City string
}

func (e CityNotFoundError) Error() string {
	return fmt.Sprintf("city not found: %s", e.City)
}

// QueueError is raised when the center search page serves the virtual
// waiting room interstitial instead of results.
type QueueError struct {
	Minutes int
}

func (e QueueError) Error() string {
	return fmt.Sprintf("waiting in queue, estimated %d minutes", e.Minutes)
}
