package commands

import (
	"testing"
	"time"

	"vaxbot/lib/scrapers/doctolib"

	"github.com/stretchr/testify/require"
)

func TestSelectMotiveKeys(t *testing.T) {
	fr := doctolib.France

	testCases := []struct {
		name     string
		flags    huntFlags
		expected []string
		wantErr  bool
	}{
		{
			// AstraZeneca is not part of the default set
			name:     "no flags selects first doses",
			flags:    huntFlags{},
			expected: []string{fr.KeyPfizer, fr.KeyModerna, fr.KeyJanssen},
		},
		{
			name:     "only second without vaccine flags",
			flags:    huntFlags{onlySecond: true},
			expected: []string{fr.KeyPfizerSecond, fr.KeyModernaSecond},
		},
		{
			name:     "only third without vaccine flags",
			flags:    huntFlags{onlyThird: true},
			expected: []string{fr.KeyPfizerThird, fr.KeyModernaThird},
		},
		{
			name:     "pfizer only",
			flags:    huntFlags{pfizer: true},
			expected: []string{fr.KeyPfizer},
		},
		{
			name:     "pfizer second dose",
			flags:    huntFlags{pfizer: true, onlySecond: true},
			expected: []string{fr.KeyPfizerSecond},
		},
		{
			name:     "pfizer and moderna",
			flags:    huntFlags{pfizer: true, moderna: true},
			expected: []string{fr.KeyPfizer, fr.KeyModerna},
		},
		{
			name:     "astrazeneca explicitly",
			flags:    huntFlags{astrazeneca: true},
			expected: []string{fr.KeyAstraZeneca},
		},
		{
			name:    "janssen has no second shot",
			flags:   huntFlags{janssen: true, onlySecond: true},
			wantErr: true,
		},
		{
			name:    "janssen has no third shot",
			flags:   huntFlags{janssen: true, onlyThird: true},
			wantErr: true,
		},
		{
			name:    "astrazeneca has no third shot",
			flags:   huntFlags{astrazeneca: true, onlyThird: true},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			keys, err := selectMotiveKeys(fr, tc.flags)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, keys)
		})
	}
}

func TestParseWeekdays(t *testing.T) {
	excluded, err := parseWeekdays(nil)
	require.NoError(t, err)
	require.Nil(t, excluded)

	excluded, err = parseWeekdays([]string{"tuesday Wednesday", "FRIDAY"})
	require.NoError(t, err)
	require.Equal(t, map[time.Weekday]bool{
		time.Tuesday:   true,
		time.Wednesday: true,
		time.Friday:    true,
	}, excluded)

	_, err = parseWeekdays([]string{"caturday"})
	require.Error(t, err)
}
