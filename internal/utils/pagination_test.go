package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFromQuery(t *testing.T, query string) (Pagination, bool) {
	t.Helper()

	var (
		pg        Pagination
		requested bool
	)
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		pg, requested = ParsePagination(c)
		return nil
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/"+query, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	return pg, requested
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		want      Pagination
		requested bool
	}{
		{"defaults", "", Pagination{Page: 1, Limit: 20, Offset: 0}, false},
		{"explicit", "?page=3&limit=10", Pagination{Page: 3, Limit: 10, Offset: 20}, true},
		{"limit only", "?limit=5", Pagination{Page: 1, Limit: 5, Offset: 0}, true},
		{"negative values", "?page=-1&limit=-4", Pagination{Page: 1, Limit: 20, Offset: 0}, true},
		{"garbage", "?page=x&limit=y", Pagination{Page: 1, Limit: 20, Offset: 0}, true},
		{"clamped", "?limit=1000", Pagination{Page: 1, Limit: 100, Offset: 0}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, requested := parseFromQuery(t, tc.query)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.requested, requested)
		})
	}
}
