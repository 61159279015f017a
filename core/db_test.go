package core_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

func TestQueryAll(t *testing.T) {
	rows := func(n int) []int {
		r := make([]int, n)
		for i := range r {
			r[i] = i + 1
		}
		return r
	}
	table := func(all []int) func(core.PageQuery) ([]int, int, error) {
		return func(pq core.PageQuery) ([]int, int, error) {
			start := pq.Offset()
			if start >= len(all) {
				return nil, len(all), nil
			}
			end := start + pq.Limit
			if end > len(all) {
				end = len(all)
			}
			return all[start:end], len(all), nil
		}
	}

	tests := []struct {
		name      string
		rows      int
		wantPages int
	}{
		{name: "empty", rows: 0, wantPages: 1},
		{name: "single page", rows: 7, wantPages: 1},
		{name: "exactly one full page", rows: core.MaxPageLimit, wantPages: 1},
		{name: "one past the page limit", rows: core.MaxPageLimit + 1, wantPages: 2},
		{name: "several pages", rows: 3*core.MaxPageLimit + 5, wantPages: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := 0
			query := table(rows(tt.rows))
			got, err := core.QueryAll(core.PageQuery{Page: 3, Limit: 5}, func(pq core.PageQuery) ([]int, int, error) {
				pages++
				assert.Equal(t, core.MaxPageLimit, pq.Limit)
				return query(pq)
			})
			require.NoError(t, err)
			assert.Equal(t, rows(tt.rows), got)
			assert.Equal(t, tt.wantPages, pages)
		})
	}

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := core.QueryAll(core.PageQuery{}, func(core.PageQuery) ([]int, int, error) { return nil, 0, boom })
		assert.Equal(t, boom, err)
	})
}
