package hunter

import (
	"log/slog"
	"regexp"
	"strings"

	"vaxbot/lib/scrapers/doctolib"

	"github.com/antzucaro/matchr"
)

// names closer than this are considered the same center when fuzzy
// matching is enabled
const fuzzyThreshold = 0.92

// Filters narrows the centers a hunt considers.
type Filters struct {
	// normalized city slugs the hunt was started for
	Cities              []string
	IncludeNeighborCity bool

	// allow-list of center names, exact unless Fuzzy is set
	Centers []string
	Fuzzy   bool

	Zipcodes []string

	CenterRegex        []*regexp.Regexp
	CenterExclude      []string
	CenterExcludeRegex []*regexp.Regexp
}

// CompileRegexps builds the include/exclude regexes of a filter set
// from raw pattern strings.
func (f *Filters) CompileRegexps(include, exclude []string) error {
	for _, pattern := range include {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return err
		}
		f.CenterRegex = append(f.CenterRegex, re)
	}
	for _, pattern := range exclude {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return err
		}
		f.CenterExcludeRegex = append(f.CenterExcludeRegex, re)
	}
	return nil
}

// Match reports whether the center passes every configured filter.
func (f Filters) Match(center doctolib.Center) bool {
	if !f.IncludeNeighborCity && !f.sameCity(center) {
		slog.Debug("skipping neighbor city", "city", center.City, "center", center.Name)
		return false
	}
	if len(f.Centers) > 0 && !f.allowed(center.Name) {
		slog.Debug("skipping center not on the allow-list", "center", center.Name)
		return false
	}
	if len(f.Zipcodes) > 0 && !contains(f.Zipcodes, center.Zipcode) {
		slog.Debug("skipping center by zipcode", "center", center.Name, "zipcode", center.Zipcode)
		return false
	}
	if len(f.CenterRegex) > 0 && !matchesAny(f.CenterRegex, center.Name) {
		slog.Debug("skipping center by regex", "center", center.Name)
		return false
	}
	if contains(f.CenterExclude, center.Name) {
		slog.Debug("skipping excluded center", "center", center.Name)
		return false
	}
	if matchesAny(f.CenterExcludeRegex, center.Name) {
		slog.Debug("skipping excluded center", "center", center.Name)
		return false
	}
	return true
}

func (f Filters) sameCity(center doctolib.Center) bool {
	normalized := doctolib.NormalizeCity(center.City)
	for _, city := range f.Cities {
		if strings.HasPrefix(normalized, city) {
			return true
		}
	}
	return false
}

func (f Filters) allowed(name string) bool {
	for _, wanted := range f.Centers {
		if name == wanted {
			return true
		}
		if f.Fuzzy && matchr.JaroWinkler(name, wanted, false) >= fuzzyThreshold {
			return true
		}
	}
	return false
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func matchesAny(regexes []*regexp.Regexp, value string) bool {
	for _, re := range regexes {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}
