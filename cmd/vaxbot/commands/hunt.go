package commands

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vaxbot/lib/scrapers/doctolib"
	"vaxbot/lib/statestore"
	"vaxbot/services/hunter"

	"github.com/spf13/cobra"
)

const dateLayout = "02/01/2006"

type huntFlags struct {
	code string

	pfizer      bool
	moderna     bool
	janssen     bool
	astrazeneca bool
	onlySecond  bool
	onlyThird   bool

	patient    int
	timeWindow int
	startDate  string
	endDate    string
	weekdays   []string

	centers            []string
	centerFuzzy        bool
	zipcodes           []string
	centerRegex        []string
	centerExclude      []string
	centerExcludeRegex []string
	neighborCity       bool

	dryRun  bool
	confirm bool
}

var huntArgs huntFlags

var huntCmd = &cobra.Command{
	Use:   "hunt <country> <city> <username> [password]",
	Short: "Polls vaccination centers until a slot is booked.",
	Long: `Polls the vaccination centers of one or more cities until a bookable
slot is found, then books it. Several cities can be given separated by
commas. The hunt runs until a booking succeeds or it is interrupted.`,
	Args: cobra.RangeArgs(3, 4),
	RunE: runHunt,
}

func init() {
	flags := huntCmd.Flags()
	flags.StringVar(&huntArgs.code, "code", "", "2FA code")
	flags.BoolVarP(&huntArgs.pfizer, "pfizer", "z", false, "select only Pfizer vaccine")
	flags.BoolVarP(&huntArgs.moderna, "moderna", "m", false, "select only Moderna vaccine")
	flags.BoolVarP(&huntArgs.janssen, "janssen", "j", false, "select only Janssen vaccine")
	flags.BoolVarP(&huntArgs.astrazeneca, "astrazeneca", "a", false, "select only AstraZeneca vaccine")
	flags.BoolVarP(&huntArgs.onlySecond, "only-second", "2", false, "select only second dose")
	flags.BoolVarP(&huntArgs.onlyThird, "only-third", "3", false, "select only third dose")
	flags.IntVarP(&huntArgs.patient, "patient", "p", -1, "give patient index")
	flags.IntVarP(&huntArgs.timeWindow, "time-window", "t", 7, "number of days to look for slots")
	flags.StringVar(&huntArgs.startDate, "start-date", "", "first date to book the first slot on (DD/MM/YYYY)")
	flags.StringVar(&huntArgs.endDate, "end-date", "", "last date to book the first slot on (DD/MM/YYYY)")
	flags.StringArrayVarP(&huntArgs.weekdays, "weekday-exclude", "w", nil, `exclude weekdays, e.g. "tuesday wednesday"`)
	flags.StringArrayVarP(&huntArgs.centers, "center", "c", nil, "filter centers by name")
	flags.BoolVar(&huntArgs.centerFuzzy, "center-fuzzy", false, "tolerate close spellings in --center")
	flags.StringArrayVar(&huntArgs.zipcodes, "zipcode", nil, "filter centers by zipcode (e.g. 76012)")
	flags.StringArrayVar(&huntArgs.centerRegex, "center-regex", nil, "filter centers by regex")
	flags.StringArrayVarP(&huntArgs.centerExclude, "center-exclude", "x", nil, "exclude centers by name")
	flags.StringArrayVar(&huntArgs.centerExcludeRegex, "center-exclude-regex", nil, "exclude centers by regex")
	flags.BoolVarP(&huntArgs.neighborCity, "include-neighbor-city", "n", false, "include neighboring cities")
	flags.BoolVar(&huntArgs.dryRun, "dry-run", false, "do not really book the slot")
	flags.BoolVar(&huntArgs.confirm, "confirm", false, "prompt to confirm before booking")

	rootCmd.AddCommand(huntCmd)
}

func runHunt(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	country, ok := doctolib.Countries[args[0]]
	if !ok {
		return fmt.Errorf("unknown country %q, available: fr, de", args[0])
	}

	var cities []string
	for _, city := range strings.Split(args[1], ",") {
		cities = append(cities, doctolib.NormalizeCity(city))
	}

	username := args[2]
	password := ""
	if len(args) > 3 {
		password = args[3]
	} else {
		var err error
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}

	motiveKeys, err := selectMotiveKeys(country, huntArgs)
	if err != nil {
		return err
	}
	var vaccines []string
	for _, key := range motiveKeys {
		vaccines = append(vaccines, country.VaccineMotives[key])
	}

	startDate := time.Now().Truncate(24 * time.Hour)
	if huntArgs.startDate != "" {
		startDate, err = time.Parse(dateLayout, huntArgs.startDate)
		if err != nil {
			return fmt.Errorf("invalid value for --start-date: %w", err)
		}
	}
	endDate := startDate.AddDate(0, 0, huntArgs.timeWindow)
	if huntArgs.endDate != "" {
		endDate, err = time.Parse(dateLayout, huntArgs.endDate)
		if err != nil {
			return fmt.Errorf("invalid value for --end-date: %w", err)
		}
	}

	excludedWeekdays, err := parseWeekdays(huntArgs.weekdays)
	if err != nil {
		return err
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

	if err := establishSession(ctx, client, store, username, huntArgs.code); err != nil {
		return err
	}
	if err := selectPatient(ctx, client, huntArgs.patient); err != nil {
		return err
	}

	filters := hunter.Filters{
		Cities:              cities,
		IncludeNeighborCity: huntArgs.neighborCity,
		Centers:             huntArgs.centers,
		Fuzzy:               huntArgs.centerFuzzy,
		Zipcodes:            huntArgs.zipcodes,
	}
	if err := filters.CompileRegexps(huntArgs.centerRegex, huntArgs.centerExcludeRegex); err != nil {
		return err
	}
	filters.CenterExclude = huntArgs.centerExclude

	opts := hunter.Options{
		Client:  client,
		Store:   store,
		Filters: filters,
		Search: doctolib.SearchOptions{
			Vaccines:         vaccines,
			StartDate:        startDate,
			EndDate:          endDate,
			ExcludedWeekdays: excludedWeekdays,
			OnlySecond:       huntArgs.onlySecond,
			OnlyThird:        huntArgs.onlyThird,
		},
		MotiveKeys: motiveKeys,
		DryRun:     huntArgs.dryRun,
		FillField:  promptCustomField,
	}
	if huntArgs.confirm {
		opts.Confirm = func(appointment *doctolib.Appointment) bool {
			return promptYesNo(fmt.Sprintf("Book the %s slot at %s?", appointment.Vaccine, appointment.Name))
		}
	}
	if config.Smtp != nil {
		opts.Notifier = hunter.NewNotifier(*config.Smtp)
	}

	if len(excludedWeekdays) > 0 {
		slog.Info("excluding weekdays", "weekdays", strings.Join(huntArgs.weekdays, ", "))
	}
	slog.Info("vaccines", "list", strings.Join(vaccines, ", "))

	result, err := hunter.New(opts).Run(ctx)
	if err != nil {
		return err
	}

	if huntArgs.dryRun {
		slog.Info("dry run, no slot was actually booked",
			"center", result.Appointment.Name,
			"slot", result.Appointment.Slots[0].Format(time.RFC1123))
		return nil
	}
	slog.Info("booked, congratulations!",
		"center", result.Appointment.Name,
		"slot", result.Appointment.Slots[0].Format(time.RFC1123),
		"map", result.Appointment.MapURL)
	return nil
}

// selectMotiveKeys maps the vaccine/dose flags to the country's motive
// keys. AstraZeneca is never included unless explicitly requested.
func selectMotiveKeys(country doctolib.Country, f huntFlags) ([]string, error) {
	var keys []string

	if !f.pfizer && !f.moderna && !f.janssen && !f.astrazeneca {
		switch {
		case f.onlySecond:
			keys = append(keys, country.KeyPfizerSecond, country.KeyModernaSecond)
		case f.onlyThird:
			if country.KeyPfizerThird == "" && country.KeyModernaThird == "" {
				return nil, fmt.Errorf("no third shot vaccinations in this country")
			}
			keys = append(keys, country.KeyPfizerThird, country.KeyModernaThird)
		default:
			keys = append(keys, country.KeyPfizer, country.KeyModerna, country.KeyJanssen)
		}
	}

	if f.pfizer {
		switch {
		case f.onlySecond:
			keys = append(keys, country.KeyPfizerSecond)
		case f.onlyThird:
			if country.KeyPfizerThird == "" {
				return nil, fmt.Errorf("pfizer has no third shot in this country")
			}
			keys = append(keys, country.KeyPfizerThird)
		default:
			keys = append(keys, country.KeyPfizer)
		}
	}
	if f.moderna {
		switch {
		case f.onlySecond:
			keys = append(keys, country.KeyModernaSecond)
		case f.onlyThird:
			if country.KeyModernaThird == "" {
				return nil, fmt.Errorf("moderna has no third shot in this country")
			}
			keys = append(keys, country.KeyModernaThird)
		default:
			keys = append(keys, country.KeyModerna)
		}
	}
	if f.janssen {
		if f.onlySecond || f.onlyThird {
			return nil, fmt.Errorf("janssen has no second or third shot")
		}
		keys = append(keys, country.KeyJanssen)
	}
	if f.astrazeneca {
		switch {
		case f.onlySecond:
			keys = append(keys, country.KeyAstraZenecaSecond)
		case f.onlyThird:
			return nil, fmt.Errorf("astrazeneca has no third shot")
		default:
			keys = append(keys, country.KeyAstraZeneca)
		}
	}

	return keys, nil
}

var dayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// parseWeekdays accepts repeated flags and space separated day names
// within a single flag value.
func parseWeekdays(groups []string) (map[time.Weekday]bool, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	excluded := map[time.Weekday]bool{}
	for _, group := range groups {
		for _, name := range strings.Fields(group) {
			day, ok := dayNames[strings.ToLower(name)]
			if !ok {
				return nil, fmt.Errorf("invalid value for --weekday-exclude: %q", name)
			}
			excluded[day] = true
		}
	}
	return excluded, nil
}

func promptCustomField(field doctolib.CustomField) string {
	for _, option := range field.Options {
		fmt.Printf("  %s: %s\n", option.Key, option.Value)
	}
	label := field.Label
	if field.Placeholder != "" {
		label = fmt.Sprintf("%s (%s)", label, field.Placeholder)
	}
	value, err := promptLine(label)
	if err != nil {
		return ""
	}
	return value
}
