package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-platform/mind-analytics-api/internal/models"
)

func TestFromTablePreservesOrderingAndNulls(t *testing.T) {
	score := 83.5
	table := &models.Table{
		Columns: []string{"account_id", "mean_score", "submissions"},
		Rows: []map[string]interface{}{
			{"account_id": "stu-1", "mean_score": score, "submissions": 3},
			{"account_id": "stu-2", "mean_score": nil, "submissions": 1},
		},
	}

	ds, err := FromTable(table)
	require.NoError(t, err)
	assert.Equal(t, table.Columns, ds.Headers)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "83.5", ds.Rows[0]["mean_score"])
	assert.Equal(t, "", ds.Rows[1]["mean_score"], "undefined means export as empty, never zero")
	assert.Equal(t, "1", ds.Rows[1]["submissions"])

	_, err = FromTable(nil)
	assert.Error(t, err)
}

func TestCSVExporterRender(t *testing.T) {
	ds := Dataset{
		Headers: []string{"letter", "count"},
		Rows: []map[string]string{
			{"letter": "A", "count": "4"},
			{"letter": "B", "count": "2"},
		},
	}

	payload, err := NewCSVExporter().Render(ds)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "letter,count", lines[0])
	assert.Equal(t, "A,4", lines[1])
	assert.Equal(t, "B,2", lines[2])
}

func TestPDFExporterRender(t *testing.T) {
	ds := Dataset{
		Headers: []string{"letter", "count"},
		Rows:    []map[string]string{{"letter": "A", "count": "4"}},
	}

	payload, err := NewPDFExporter().Render(ds, "Letter grade distribution")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}
