package doctolib

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCity(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{"Paris", "paris"},
		{"Besançon", "besancon"},
		{"Aix en Provence", "aix-en-provence"},
		{"München", "munchen"},
		{"Köln", "koln"},
		{"Saint-Étienne", "saint-etienne"},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.expected, NormalizeCity(tc.in), tc.in)
	}
}
