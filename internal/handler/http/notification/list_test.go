package notification

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnloop/internal/domain/entity"
)

func TestParseListFilters(t *testing.T) {
	t.Run("all filters", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet,
			"/users/u1/notifications?status=failed&category=marketing&channel=email&unread=true&from=2026-08-01T00:00:00Z&to=2026-08-31T00:00:00Z", nil)
		filters, err := parseListFilters(r)
		require.NoError(t, err)

		require.NotNil(t, filters.Status)
		assert.Equal(t, entity.StatusFailed, *filters.Status)
		require.NotNil(t, filters.Category)
		assert.Equal(t, entity.CategoryMarketing, *filters.Category)
		require.NotNil(t, filters.Channel)
		assert.Equal(t, entity.ChannelEmail, *filters.Channel)
		assert.True(t, filters.Unread)
		require.NotNil(t, filters.From)
		require.NotNil(t, filters.To)
		assert.True(t, filters.From.Before(*filters.To))
	})

	t.Run("no filters", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/users/u1/notifications", nil)
		filters, err := parseListFilters(r)
		require.NoError(t, err)
		assert.Nil(t, filters.Status)
		assert.Nil(t, filters.Category)
		assert.Nil(t, filters.Channel)
		assert.False(t, filters.Unread)
	})

	rejections := []string{
		"status=lost",
		"category=spam",
		"channel=fax",
		"from=yesterday",
		"to=tomorrow",
	}
	for _, query := range rejections {
		t.Run(query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/users/u1/notifications?"+query, nil)
			_, err := parseListFilters(r)
			assert.Error(t, err)
		})
	}
}
