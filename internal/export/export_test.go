package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/trackscout/internal/model"
)

func sampleResults() []*model.ScoreBreakdown {
	return []*model.ScoreBreakdown{
		{
			ISRC: "USRC17607839", ArtistName: "Vera Nocturne",
			IndependenceScore: 100, IndependenceClass: "self-released",
			OpportunityScore: 60, GeographicScore: 30,
			TotalScore: 70.0, Tier: model.TierA,
			YouTubeClass: model.YouTubeUnknown, Confidence: 60,
			DataSourcesUsed: []string{model.ProviderMusicBrainz, model.ProviderLastFM},
		},
		{
			ISRC: "GBAYE0601498", ArtistName: "The Daylight Union",
			IndependenceScore: 0, IndependenceClass: "major-distributed",
			OpportunityScore: 0, GeographicScore: 20,
			TotalScore: 4.0, Tier: model.TierD,
			YouTubeClass: model.YouTubeAdequate, Confidence: 100,
			DataSourcesUsed: []string{model.ProviderMusicBrainz},
		},
	}
}

func sampleFailures() []model.FailureReport {
	return []model.FailureReport{{ISRC: "not-an-isrc", Reason: "invalid_isrc"}}
}

func TestWrite_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.csv")
	require.NoError(t, Write(sampleResults(), sampleFailures(), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "USRC17607839", rows[1][0])
	assert.Equal(t, "70.0", rows[1][3])
	assert.Equal(t, "A", rows[1][2])
	assert.Equal(t, "musicbrainz;lastfm", rows[1][10])

	failPath := filepath.Join(filepath.Dir(path), "scores_failures.csv")
	f2, err := os.Open(failPath)
	require.NoError(t, err)
	defer f2.Close()
	frows, err := csv.NewReader(f2).ReadAll()
	require.NoError(t, err)
	require.Len(t, frows, 2)
	assert.Equal(t, "invalid_isrc", frows[1][1])
}

func TestWrite_CSVNoFailuresSkipsSiblingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scores.csv")
	require.NoError(t, Write(sampleResults(), nil, path))

	_, err := os.Stat(filepath.Join(dir, "scores_failures.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestWrite_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.xlsx")
	require.NoError(t, Write(sampleResults(), sampleFailures(), path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)
	assert.Equal(t, "Results", f.Sheets[0].Name)
	assert.Equal(t, "Failures", f.Sheets[1].Name)

	require.Len(t, f.Sheets[0].Rows, 3)
	assert.Equal(t, "USRC17607839", f.Sheets[0].Rows[1].Cells[0].String())
	assert.Equal(t, "70.0", f.Sheets[0].Rows[1].Cells[3].String())
}

func TestWrite_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")
	require.NoError(t, Write(sampleResults(), sampleFailures(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc jsonDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Results, 2)
	assert.Equal(t, model.TierA, doc.Results[0].Tier)
	require.Len(t, doc.Failures, 1)
}

func TestWrite_UnsupportedExtension(t *testing.T) {
	err := Write(sampleResults(), nil, filepath.Join(t.TempDir(), "scores.txt"))
	assert.Error(t, err)
}
