package handler

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListOpts(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
		wantSince  *time.Time
	}{
		{"", 50, 0, nil},
		{"?limit=10&offset=20", 10, 20, nil},
		{"?limit=9999", 500, 0, nil},
		{"?limit=0&offset=-3", 50, 0, nil},
		{"?limit=abc", 50, 0, nil},
		{"?since=2026-03-01T12:00:00Z", 50, 0, &since},
		{"?since=yesterday", 50, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			opts := parseListOpts(httptest.NewRequest("GET", "/api/opportunities"+tt.query, nil))
			assert.Equal(t, tt.wantLimit, opts.Limit)
			assert.Equal(t, tt.wantOffset, opts.Offset)
			if tt.wantSince == nil {
				assert.Nil(t, opts.Since)
				return
			}
			require.NotNil(t, opts.Since)
			assert.True(t, tt.wantSince.Equal(*opts.Since))
		})
	}
}
