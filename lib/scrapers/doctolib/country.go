package doctolib

// Country carries the per-country endpoints and the motive tables of
// the Doctolib variants. Motive keys are Doctolib's internal numeric
// identifiers for a bookable visit reason, the values are regexes
// matched against motive names (some practices use their own
// spelling).
type Country struct {
	Code       string
	BaseURL    string
	SearchPath string

	KeyPfizer            string
	KeyPfizerSecond      string
	KeyPfizerThird       string
	KeyModerna           string
	KeyModernaSecond     string
	KeyModernaThird      string
	KeyJanssen           string
	KeyAstraZeneca       string
	KeyAstraZenecaSecond string

	VaccineMotives map[string]string
	motiveOrder    []string
}

var France = Country{
	Code:       "fr",
	BaseURL:    "https://www.doctolib.fr",
	SearchPath: "/vaccination-covid-19",

	KeyPfizer:            "6970",
	KeyPfizerSecond:      "6971",
	KeyPfizerThird:       "8192",
	KeyModerna:           "7005",
	KeyModernaSecond:     "7004",
	KeyModernaThird:      "8193",
	KeyJanssen:           "7945",
	KeyAstraZeneca:       "7107",
	KeyAstraZenecaSecond: "7108",

	VaccineMotives: map[string]string{
		"6970": "Pfizer",
		"6971": "2de.*Pfizer",
		"8192": "3e.*Pfizer",
		"7005": "Moderna",
		"7004": "2de.*Moderna",
		"8193": "3e.*Moderna",
		"7945": "Janssen",
		"7107": "AstraZeneca",
		"7108": "2de.*AstraZeneca",
	},
	motiveOrder: []string{"6970", "6971", "8192", "7005", "7004", "8193", "7945", "7107", "7108"},
}

var Germany = Country{
	Code:       "de",
	BaseURL:    "https://www.doctolib.de",
	SearchPath: "/impfung-covid-19-corona",

	KeyPfizer:            "6768",
	KeyPfizerSecond:      "6769",
	KeyPfizerThird:       "9039",
	KeyModerna:           "6936",
	KeyModernaSecond:     "6937",
	KeyModernaThird:      "9040",
	KeyJanssen:           "7978",
	KeyAstraZeneca:       "7109",
	KeyAstraZenecaSecond: "7110",

	VaccineMotives: map[string]string{
		"6768": "Pfizer",
		"6769": "Zweit.*Pfizer|Pfizer.*Zweit",
		"9039": "Auffrischung.*Pfizer|Pfizer.*Auffrischung|Dritt.*Pfizer|Booster.*Pfizer",
		"6936": "Moderna",
		"6937": "Zweit.*Moderna|Moderna.*Zweit",
		"9040": "Auffrischung.*Moderna|Moderna.*Auffrischung|Dritt.*Moderna|Booster.*Moderna",
		"7978": "Janssen",
		"7109": "AstraZeneca",
		"7110": "Zweit.*AstraZeneca|AstraZeneca.*Zweit",
	},
	motiveOrder: []string{"6768", "6769", "9039", "6936", "6937", "9040", "7978", "7109", "7110"},
}

var Countries = map[string]Country{
	"fr": France,
	"de": Germany,
}

// MotiveKeys returns all motive keys of the country in a stable
// order, used when no vaccine filter narrows the search.
func (c Country) MotiveKeys() []string {
	return append([]string(nil), c.motiveOrder...)
}
