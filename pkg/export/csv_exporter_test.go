package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()

	t.Run("writes headers and positional rows", func(t *testing.T) {
		data, err := exporter.Render(Dataset{
			Headers: []string{"ID", "Student", "Amount"},
			Rows: [][]string{
				{"pay-1", "Ana Pérez", "15000.00"},
				{"pay-2", "Juan Gómez", "12500.00"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "ID,Student,Amount\npay-1,Ana Pérez,15000.00\npay-2,Juan Gómez,12500.00\n", string(data))
	})

	t.Run("rejects a row that does not line up with the headers", func(t *testing.T) {
		_, err := exporter.Render(Dataset{
			Headers: []string{"ID", "Student"},
			Rows:    [][]string{{"pay-1"}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 fields, want 2")
	})

	t.Run("requires headers", func(t *testing.T) {
		_, err := exporter.Render(Dataset{})
		require.Error(t, err)
	})
}
