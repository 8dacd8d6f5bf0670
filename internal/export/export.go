// Package export writes batch scoring output to disk, dispatching on the
// destination extension: .csv, .xlsx or .json. Failures travel with the
// results (second sheet, suffixed file, or sibling JSON field).
package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/trackscout/internal/model"
)

var header = []string{
	"isrc", "artist_name", "tier", "total_score",
	"independence_score", "independence_class",
	"opportunity_score", "geographic_score",
	"youtube_class", "confidence", "data_sources",
}

// Write persists results and failures to path. The format follows the file
// extension; unknown extensions are an error.
func Write(results []*model.ScoreBreakdown, failures []model.FailureReport, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return writeCSV(results, failures, path)
	case ".xlsx":
		return writeXLSX(results, failures, path)
	case ".json":
		return writeJSON(results, failures, path)
	default:
		return eris.Errorf("export: unsupported extension %q", filepath.Ext(path))
	}
}

func row(b *model.ScoreBreakdown) []string {
	return []string{
		b.ISRC,
		b.ArtistName,
		string(b.Tier),
		strconv.FormatFloat(b.TotalScore, 'f', 1, 64),
		strconv.FormatFloat(b.IndependenceScore, 'f', 1, 64),
		b.IndependenceClass,
		strconv.FormatFloat(b.OpportunityScore, 'f', 1, 64),
		strconv.FormatFloat(b.GeographicScore, 'f', 1, 64),
		string(b.YouTubeClass),
		strconv.FormatFloat(b.Confidence, 'f', 0, 64),
		strings.Join(b.DataSourcesUsed, ";"),
	}
}

func writeCSV(results []*model.ScoreBreakdown, failures []model.FailureReport, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, b := range results {
		if err := w.Write(row(b)); err != nil {
			return eris.Wrapf(err, "export: write row %s", b.ISRC)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}

	if len(failures) == 0 {
		return nil
	}
	return writeFailuresCSV(failures, failuresPath(path))
}

// failuresPath derives the sibling failures file: scores.csv -> scores_failures.csv.
func failuresPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_failures" + ext
}

func writeFailuresCSV(failures []model.FailureReport, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"isrc", "reason"}); err != nil {
		return eris.Wrap(err, "export: write failures header")
	}
	for _, fr := range failures {
		if err := w.Write([]string{fr.ISRC, fr.Reason}); err != nil {
			return eris.Wrapf(err, "export: write failure %s", fr.ISRC)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush failures csv")
}

func writeXLSX(results []*model.ScoreBreakdown, failures []model.FailureReport, path string) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Results")
	if err != nil {
		return eris.Wrap(err, "export: add results sheet")
	}
	addRow(sheet, header)
	for _, b := range results {
		addRow(sheet, row(b))
	}

	if len(failures) > 0 {
		fsheet, err := f.AddSheet("Failures")
		if err != nil {
			return eris.Wrap(err, "export: add failures sheet")
		}
		addRow(fsheet, []string{"isrc", "reason"})
		for _, fr := range failures {
			addRow(fsheet, []string{fr.ISRC, fr.Reason})
		}
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	r := sheet.AddRow()
	for _, c := range cells {
		r.AddCell().Value = c
	}
}

// jsonDoc is the .json export shape.
type jsonDoc struct {
	Results  []*model.ScoreBreakdown `json:"results"`
	Failures []model.FailureReport   `json:"failures,omitempty"`
}

func writeJSON(results []*model.ScoreBreakdown, failures []model.FailureReport, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return eris.Wrapf(enc.Encode(jsonDoc{Results: results, Failures: failures}),
		"export: encode %s", path)
}
