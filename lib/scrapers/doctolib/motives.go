package doctolib

import (
	"fmt"
	"log/slog"
	"regexp"
)

// FindMotive resolves a vaccine name pattern to a motive id. Motives
// closed to new patients are skipped, and unless singleShot is set so
// are motives that are not a first-shot motive (second/booster doses
// are searched through their own keys).
func (d *BookingData) FindMotive(namePattern string, singleShot bool) (int64, bool) {
	re, err := regexp.Compile(fmt.Sprintf("(?i).*(%s)", namePattern))
	if err != nil {
		slog.Warn("bad motive pattern", "pattern", namePattern, "err", err)
		return 0, false
	}

	for _, motive := range d.VisitMotives {
		if !re.MatchString(motive.Name) {
			continue
		}
		if !motive.AllowNewPatients {
			slog.Info("motive not allowed for new patients at this center, skipping vaccine", "motive", motive.Name)
			continue
		}
		if !singleShot && !motive.FirstShotMotive {
			slog.Info("skipping second shot motive", "motive", motive.Name)
			continue
		}
		return motive.ID, true
	}

	return 0, false
}

// MotiveNames lists every motive name the center advertises, for
// diagnostics when none of the requested vaccines matched.
func (d *BookingData) MotiveNames() []string {
	names := make([]string, len(d.VisitMotives))
	for i, motive := range d.VisitMotives {
		names[i] = motive.Name
	}
	return names
}

// AgendaIDs collects the bookable agendas carrying the motive,
// optionally scoped to one practice. practiceID <= 0 disables the
// practice filter.
func (d *BookingData) AgendaIDs(motiveID, practiceID int64) []string {
	var ids []string
	for _, agenda := range d.Agendas {
		if agenda.BookingDisabled {
			continue
		}
		if practiceID > 0 && agenda.PracticeID != practiceID {
			continue
		}
		for _, id := range agenda.VisitMotiveIDs {
			if id == motiveID {
				ids = append(ids, formatInt(agenda.ID))
				break
			}
		}
	}
	return ids
}
