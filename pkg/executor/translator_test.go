package executor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sqlbridge/pkg/executor"
)

func TestRuleTranslator_Translate(t *testing.T) {
	t.Parallel()
	tr := executor.NewRuleTranslator()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"iff", "SELECT IFF(a > 1, 'big', 'small') FROM t", "SELECT IIF(a > 1, 'big', 'small') FROM t"},
		{"nvl lowercase", "select nvl(name, 'n/a') from users", "select IFNULL(name, 'n/a') from users"},
		{"current timestamp call", "SELECT CURRENT_TIMESTAMP()", "SELECT CURRENT_TIMESTAMP"},
		{"identifier containing keyword", "SELECT my_nvl(x) FROM t", "SELECT my_nvl(x) FROM t"},
		{"quoted literal untouched", "SELECT 'NVL(x)', NVL(y, 0)", "SELECT 'NVL(x)', IFNULL(y, 0)"},
		{"escaped quote", "SELECT 'it''s NVL(', NVL(a, b)", "SELECT 'it''s NVL(', IFNULL(a, b)"},
		{"no rules apply", "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tr.Translate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("empty statement", func(t *testing.T) {
		t.Parallel()
		_, err := tr.Translate("   ")
		require.ErrorIs(t, err, executor.ErrEmptyStatement)
	})
}

func TestIsWrite(t *testing.T) {
	t.Parallel()

	writes := []string{
		"CREATE TABLE t (id INT)",
		"  insert into t values (1)",
		"UPDATE t SET id = 2",
		"delete from t",
		"DROP TABLE t",
		"\n\tALTER TABLE t ADD COLUMN x INT",
		"COPY INTO t FROM 's3://x'",
	}
	for _, sql := range writes {
		assert.True(t, executor.IsWrite(sql), sql)
	}

	reads := []string{
		"SELECT * FROM t",
		"WITH x AS (SELECT 1) SELECT * FROM x",
		"PRAGMA table_info(t)",
		"",
		// Known approximation: leading comments hide the keyword.
		"-- note\nINSERT INTO t VALUES (1)",
	}
	for _, sql := range reads {
		assert.False(t, executor.IsWrite(sql), sql)
	}
}
