package aggregation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "already two places", in: 12.5, want: 12.5},
		{name: "rounds down", in: 3.14159, want: 3.14},
		{name: "half rounds away from zero", in: 2.675, want: 2.68},
		{name: "negative", in: -1.005, want: -1.01},
		{name: "integer", in: 7, want: 7},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Round(tc.in, 2))
		})
	}
}

func TestParseGroupValue(t *testing.T) {
	require.Equal(t, float64(42), ParseGroupValue("42"))
	require.Equal(t, 3.5, ParseGroupValue("3.5"))
	require.Equal(t, float64(-120), ParseGroupValue("-120"))
	require.Equal(t, "user-1", ParseGroupValue("user-1"))
	require.Equal(t, "", ParseGroupValue(""))
}
