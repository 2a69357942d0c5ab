package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterPadsRowsAndWritesBOM(t *testing.T) {
	out, err := NewCSVExporter(true).Render(Dataset{
		Headers: []string{"teacher", "status"},
		Rows:    [][]string{{"Ana", "submitted"}, {"Budi"}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("\ufeff")))
	assert.Equal(t, "\ufeffteacher,status\nAna,submitted\nBudi,\n", string(out))
}

func TestCSVExporterRejectsWideRows(t *testing.T) {
	_, err := NewCSVExporter(false).Render(Dataset{
		Headers: []string{"a"},
		Rows:    [][]string{{"1", "2"}},
	})
	require.Error(t, err)
}

func TestPDFExporterRendersSections(t *testing.T) {
	rows := make([][]string, 0, 60)
	for i := 0; i < 60; i++ {
		rows = append(rows, []string{"X", "A", "Mathematics", "Fractions", "Adding unlike denominators and simplifying the result", "Page 12"})
	}
	out, err := NewPDFExporter().Render(Document{
		Title:    "Weekly lesson plans",
		Subtitle: "Week starting 2024-03-04",
		Sections: []Section{{
			Heading: "Ana Wijaya",
			Data: Dataset{
				Headers: []string{"Class", "Section", "Subject", "Chapter", "Topics", "Homework"},
				Rows:    rows,
			},
			Weights: []float64{1, 1, 2, 2, 4, 2},
		}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresSections(t *testing.T) {
	_, err := NewPDFExporter().Render(Document{Title: "empty"})
	require.Error(t, err)
}
