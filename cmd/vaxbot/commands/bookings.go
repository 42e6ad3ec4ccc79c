package commands

import (
	"os"
	"time"

	"vaxbot/lib/statestore"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var bookingsCmd = &cobra.Command{
	Use:   "bookings",
	Short: "Lists the bookings made by previous hunts.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config := loadConfig()
		store, err := statestore.Open(config.StatePath)
		if err != nil {
			return err
		}
		defer store.Close()

		bookings, err := store.ListBookings(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Booked at", "Center", "Vaccine", "Patient", "First dose", "Second dose"})
		for _, b := range bookings {
			secondSlot := ""
			if !b.SecondSlot.IsZero() {
				secondSlot = b.SecondSlot.Format(time.RFC1123)
			}
			t.AppendRow(table.Row{
				b.BookedAt.Format("2006-01-02 15:04"),
				b.CenterName,
				b.Vaccine,
				b.Patient,
				b.FirstSlot.Format(time.RFC1123),
				secondSlot,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bookingsCmd)
}
