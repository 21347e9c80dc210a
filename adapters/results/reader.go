package results

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"expstat/domain/experiment"
	"expstat/ports"
)

// Expected headers. Proportion files carry variant/users/conversions,
// continuous files carry variant/users/mean/variance. Header names are
// case-insensitive.
const (
	colVariant     = "variant"
	colUsers       = "users"
	colConversions = "conversions"
	colMean        = "mean"
	colVariance    = "variance"
)

// DataReader reads experiment results from Excel and CSV files into variant
// samples. It only parses; all statistical checks happen in the engine.
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	metric   string
}

// NewDataReader creates a reader for the given results file. The metric name
// is attached to the parsed table so multi-file callers can tell guardrail
// tables apart.
func NewDataReader(filePath, metric string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, metric: metric}
}

// ReadResults reads the file into a results table.
func (r *DataReader) ReadResults() (*ports.ResultsTable, error) {
	log.Printf("[DataReader] Reading %s results file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("results file not found: %s", r.filePath)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}

	table, err := r.parseRows(rows)
	if err != nil {
		return nil, err
	}

	log.Printf("[DataReader] Parsed %d variants (%s metric)", len(table.Samples), table.Kind)
	return table, nil
}

func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func (r *DataReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel file has no sheets: %s", r.filePath)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func (r *DataReader) parseRows(rows [][]string) (*ports.ResultsTable, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("results file needs a header row and at least one data row")
	}

	columns := make(map[string]int, len(rows[0]))
	for i, header := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(header))] = i
	}

	variantIdx, ok := columns[colVariant]
	if !ok {
		return nil, fmt.Errorf("missing required column %q", colVariant)
	}
	usersIdx, ok := columns[colUsers]
	if !ok {
		return nil, fmt.Errorf("missing required column %q", colUsers)
	}

	kind := experiment.MetricProportion
	if _, hasConversions := columns[colConversions]; !hasConversions {
		if _, hasMean := columns[colMean]; !hasMean {
			return nil, fmt.Errorf("results need either a %q or a %q column", colConversions, colMean)
		}
		if _, hasVariance := columns[colVariance]; !hasVariance {
			return nil, fmt.Errorf("continuous results need a %q column", colVariance)
		}
		kind = experiment.MetricContinuous
	}

	samples := make([]experiment.VariantSample, 0, len(rows)-1)
	for rowNum, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}

		name := cell(row, variantIdx)
		if name == "" {
			return nil, fmt.Errorf("row %d: empty variant name", rowNum+2)
		}
		units, err := parseIntCell(row, usersIdx)
		if err != nil {
			return nil, fmt.Errorf("row %d: column %q: %w", rowNum+2, colUsers, err)
		}

		if kind == experiment.MetricProportion {
			successes, err := parseIntCell(row, columns[colConversions])
			if err != nil {
				return nil, fmt.Errorf("row %d: column %q: %w", rowNum+2, colConversions, err)
			}
			samples = append(samples, experiment.NewProportionSample(name, units, successes))
			continue
		}

		mean, err := parseFloatCell(row, columns[colMean])
		if err != nil {
			return nil, fmt.Errorf("row %d: column %q: %w", rowNum+2, colMean, err)
		}
		variance, err := parseFloatCell(row, columns[colVariance])
		if err != nil {
			return nil, fmt.Errorf("row %d: column %q: %w", rowNum+2, colVariance, err)
		}
		samples = append(samples, experiment.NewContinuousSample(name, units, mean, variance))
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("results file has no data rows")
	}

	return &ports.ResultsTable{
		Metric:  r.metric,
		Kind:    kind,
		Samples: samples,
	}, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlankRow(row []string) bool {
	for _, value := range row {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

func parseIntCell(row []string, idx int) (int, error) {
	value := cell(row, idx)
	if value == "" {
		return 0, fmt.Errorf("empty cell")
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", value)
	}
	return parsed, nil
}

func parseFloatCell(row []string, idx int) (float64, error) {
	value := cell(row, idx)
	if value == "" {
		return 0, fmt.Errorf("empty cell")
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", value)
	}
	return parsed, nil
}
