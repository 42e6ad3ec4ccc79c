package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"vaxbot/lib/scrapers/doctolib"
	"vaxbot/lib/statestore"
)

// establishSession logs the client in, reusing a stored session when
// one is still valid, and handling the email auth code challenge.
func establishSession(ctx context.Context, client *doctolib.Client, store *statestore.Store, username, code string) error {
	if store != nil {
		cookies, err := store.LoadSession(ctx, client.Country.Code, username)
		if err != nil {
			slog.Warn("failed to load stored session", "err", err)
		}
		if len(cookies) > 0 {
			client.RestoreCookies(cookies)
			if client.LoggedIn(ctx) {
				slog.InfoContext(ctx, "resumed previous session")
				return nil
			}
			store.ClearSession(ctx, client.Country.Code, username)
		}
	}

	err := client.Login(ctx, code)
	if errors.Is(err, doctolib.ErrTwoFactorRequired) {
		if !interactive() {
			return fmt.Errorf("auth code input required but no interactive terminal is available, pass it with --code")
		}
		entered, perr := promptLine("Enter the auth code sent to your email")
		if perr != nil {
			return perr
		}
		err = client.SubmitCode(ctx, entered)
	}
	if err != nil {
		return err
	}

	if store != nil {
		if err := store.SaveSession(ctx, client.Country.Code, username, client.Cookies()); err != nil {
			slog.Warn("failed to save session", "err", err)
		}
	}
	return nil
}

// selectPatient sets client.Patient from the account's master patient
// list, prompting when several patients exist and no index was given.
func selectPatient(ctx context.Context, client *doctolib.Client, index int) error {
	patients, err := client.Patients(ctx)
	if err != nil {
		return err
	}
	if len(patients) == 0 {
		return fmt.Errorf("no patient is registered on this account, please fill in your patient data on the Doctolib website")
	}

	if index >= 0 {
		if index >= len(patients) {
			return fmt.Errorf("patient index %d out of range, the account has %d patient(s)", index, len(patients))
		}
		client.Patient = patients[index]
		return nil
	}
	if len(patients) == 1 {
		client.Patient = patients[0]
		return nil
	}

	fmt.Fprintln(os.Stderr, "Available patients are:")
	for i, patient := range patients {
		fmt.Fprintf(os.Stderr, "* [%d] %s\n", i, patient.DisplayName())
	}
	for {
		answer, err := promptLine("For which patient do you want to book a slot?")
		if err != nil {
			return err
		}
		i, err := strconv.Atoi(answer)
		if err != nil || i < 0 || i >= len(patients) {
			continue
		}
		client.Patient = patients[i]
		return nil
	}
}
