package commands

import (
	"fmt"
	"os"

	"vaxbot/lib/scrapers/doctolib"
	"vaxbot/lib/statestore"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var patientsCode string

var patientsCmd = &cobra.Command{
	Use:   "patients <country> <username> [password]",
	Short: "Lists the patients registered on the account.",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		country, ok := doctolib.Countries[args[0]]
		if !ok {
			return fmt.Errorf("unknown country %q, available: fr, de", args[0])
		}

		username := args[1]
		password := ""
		if len(args) > 2 {
			password = args[2]
		} else {
			var err error
			password, err = promptPassword()
			if err != nil {
				return err
			}
		}

		config := loadConfig()
		if err := ensureStateDir(config.StatePath); err != nil {
			return err
		}
		store, err := statestore.Open(config.StatePath)
		if err != nil {
			return err
		}
		defer store.Close()

		client, err := doctolib.NewClient(ctx, doctolib.ClientOptions{
			Country:  country,
			Username: username,
			Password: password,
		})
		if err != nil {
			return err
		}
		if err := establishSession(ctx, client, store, username, patientsCode); err != nil {
			return err
		}

		patients, err := client.Patients(ctx)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"#", "First name", "Last name"})
		for i, patient := range patients {
			t.AppendRow(table.Row{i, patient.FirstName, patient.LastName})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func init() {
	patientsCmd.Flags().StringVar(&patientsCode, "code", "", "2FA code")
	rootCmd.AddCommand(patientsCmd)
}
