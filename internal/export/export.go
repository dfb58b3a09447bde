// internal/export/export.go
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txflow/internal/history"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format       ExportFormat
	StartTime    time.Time
	EndTime      time.Time
	StatusFilter history.Status
	OutputDir    string
}

// HistoryExporter writes wallet history to files.
type HistoryExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewHistoryExporter creates a new history exporter
func NewHistoryExporter(logger *zap.Logger) *HistoryExporter {
	return &HistoryExporter{
		logger: logger,
		now:    time.Now,
	}
}

// Export writes the entries of owner that match options, oldest first, and returns the file path.
func (he *HistoryExporter) Export(owner string, entries []history.Entry, options ExportOptions) (string, error) {
	filtered := filterEntries(entries, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no transactions match the export criteria")
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Time.Before(filtered[j].Time)
	})

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, he.filename(owner, options))

	var err error
	switch options.Format {
	case FormatCSV:
		err = exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = he.exportToJSON(owner, filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	he.logger.Info("History exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func filterEntries(entries []history.Entry, options ExportOptions) []history.Entry {
	var filtered []history.Entry
	for _, e := range entries {
		if !options.StartTime.IsZero() && e.Time.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && e.Time.After(options.EndTime) {
			continue
		}
		if options.StatusFilter != "" && e.Status != options.StatusFilter {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func (he *HistoryExporter) filename(owner string, options ExportOptions) string {
	prefix := "history"
	if len(owner) >= 8 {
		prefix += "_" + owner[:8]
	}
	if options.StatusFilter != "" {
		prefix += "_" + string(options.StatusFilter)
	}
	return fmt.Sprintf("%s_%s.%s", prefix, he.now().Format("20060102_150405"), options.Format)
}

// CSVHeaders are the columns of a CSV export.
func CSVHeaders() []string {
	return []string{"time", "txid", "title", "description", "status", "block_slot"}
}

func toCSV(e history.Entry) []string {
	slot := ""
	if e.BlockSlot != 0 {
		slot = strconv.FormatUint(e.BlockSlot, 10)
	}
	return []string{e.Time.UTC().Format(time.RFC3339), e.TxID, e.Title, e.Description, string(e.Status), slot}
}

func exportToCSV(entries []history.Entry, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, e := range entries {
		if err := writer.Write(toCSV(e)); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (he *HistoryExporter) exportToJSON(owner string, entries []history.Entry, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime time.Time       `json:"export_time"`
		Wallet     string          `json:"wallet"`
		Count      int             `json:"count"`
		Entries    []history.Entry `json:"entries"`
		Summary    ExportSummary   `json:"summary"`
	}{
		ExportTime: he.now(),
		Wallet:     owner,
		Count:      len(entries),
		Entries:    entries,
		Summary:    Summarize(entries),
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportSummary counts exported entries per status.
type ExportSummary struct {
	Total     int       `json:"total"`
	Pending   int       `json:"pending"`
	Success   int       `json:"success"`
	Fail      int       `json:"fail"`
	Dropped   int       `json:"dropped"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Summarize expects entries ordered oldest first.
func Summarize(entries []history.Entry) ExportSummary {
	summary := ExportSummary{Total: len(entries)}
	if len(entries) == 0 {
		return summary
	}
	summary.StartDate = entries[0].Time
	summary.EndDate = entries[len(entries)-1].Time

	for _, e := range entries {
		switch e.Status {
		case history.StatusPending:
			summary.Pending++
		case history.StatusSuccess:
			summary.Success++
		case history.StatusFail:
			summary.Fail++
		case history.StatusDropped:
			summary.Dropped++
		}
	}
	return summary
}
