package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToInt64(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
	}{
		{"int", 7, 7},
		{"int64", int64(9), 9},
		{"uint32", uint32(3), 3},
		{"float", 4.9, 4},
		{"string", "42", 42},
		{"padded string", " 42 ", 42},
		{"bytes", []byte("17"), 17},
		{"garbage", "abc", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToInt64(tt.in))
		})
	}
}

func TestToString(t *testing.T) {
	assert.Equal(t, "abc", ToString("abc"))
	assert.Equal(t, "abc", ToString([]byte("abc")))
	assert.Equal(t, "12", ToString(12))
}

func TestToTime(t *testing.T) {
	want := time.Date(2017, 1, 12, 11, 38, 0, 0, time.UTC)

	t.Run("time value", func(t *testing.T) {
		got, err := ToTime(want.In(time.FixedZone("x", 3600)))
		require.NoError(t, err)
		assert.True(t, want.Equal(got))
		assert.Equal(t, time.UTC, got.Location())
	})

	t.Run("mysql text", func(t *testing.T) {
		got, err := ToTime([]byte("2017-01-12 11:38:00"))
		require.NoError(t, err)
		assert.True(t, want.Equal(got))
	})

	t.Run("sqlite text", func(t *testing.T) {
		got, err := ToTime("2017-01-12 11:38:00+00:00")
		require.NoError(t, err)
		assert.True(t, want.Equal(got))
	})

	t.Run("rfc3339", func(t *testing.T) {
		got, err := ToTime("2017-01-12T12:38:00+01:00")
		require.NoError(t, err)
		assert.True(t, want.Equal(got))
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ToTime("yesterday")
		assert.Error(t, err)
		_, err = ToTime(12)
		assert.Error(t, err)
	})
}
