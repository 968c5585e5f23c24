package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositional(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		params   map[string]any
		wantText string
		wantArgs []any
	}{
		{
			name:     "NoParams",
			text:     `select from "person"`,
			wantText: `select from "person"`,
		},
		{
			name:     "InOrderOfAppearance",
			text:     `select from "person" as t where by_name(t, :p_1) and since(t, :p_0)`,
			params:   map[string]any{"p_0": 10, "p_1": "ann"},
			wantText: `select from "person" as t where by_name(t, $1) and since(t, $2)`,
			wantArgs: []any{"ann", 10},
		},
		{
			name:     "Reused",
			text:     `select :a, :b, :a`,
			params:   map[string]any{"a": 1, "b": 2},
			wantText: `select $1, $2, $1`,
			wantArgs: []any{1, 2},
		},
		{
			name:     "CastsAndQuotes",
			text:     `select ':x', ":y", '::z', :v::int4, 'it'':s'`,
			params:   map[string]any{"v": "1"},
			wantText: `select ':x', ":y", '::z', $1::int4, 'it'':s'`,
			wantArgs: []any{"1"},
		},
		{
			name:     "LiteralFilterWithColonInside",
			text:     `select from "t" where "c" = 'a :p_0 b' and f(t, :p_0)`,
			params:   map[string]any{"p_0": 3},
			wantText: `select from "t" where "c" = 'a :p_0 b' and f(t, $1)`,
			wantArgs: []any{3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, args, err := Positional(tt.text, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantArgs, args)
		})
	}

	t.Run("Missing", func(t *testing.T) {
		_, _, err := Positional(`select :p_0`, map[string]any{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"p_0"`)
	})

	t.Run("FromBuilder", func(t *testing.T) {
		text, params := Select(Col("id")).
			From(Table("person").As("t")).
			Where(Qualifier("by_name", "t", "ann")).
			Limit(10).
			Offset(0).
			Query()
		text, args, err := Positional(text, params)
		require.NoError(t, err)
		assert.Equal(t, `select "id" from "person" as t where by_name(t, $1) limit 10 offset 0`, text)
		assert.Equal(t, []any{"ann"}, args)
	})
}
