// Package parsers reads batch seed files.
//
// Seed files bootstrap an empty batch store. Three formats are accepted:
//   - JSON: an object with a "batches" array, the format of batches.json
//   - YAML: the same document shape, or a bare list of batches
//   - CSV: one batch per row with a header naming the columns
//
// Every record goes through the same normalization as records read from the
// store. Invalid records are collected with their location and skipped; the
// rest of the file is still returned.
//
// Example usage:
//
//	parser, err := parsers.NewSeedParser(nil)
//	batches, stats, err := parser.ParseFile(ctx, "batches.json")
//	if stats.HasErrors() {
//		log.Println(stats.GetSampleErrors(5))
//	}
package parsers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	apperrors "segmentation-tracker/pkg/errors"
	"segmentation-tracker/pkg/logger"
)

// ParseConfig holds configuration for CSV reading
type ParseConfig struct {
	Delimiter        rune
	Comment          rune
	TrimLeadingSpace bool
	SkipEmptyRows    bool
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		Delimiter:        ',',
		Comment:          '#',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
	}
}

// BaseParser provides the CSV plumbing shared by row-oriented formats
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a new BaseParser with the given configuration
func NewBaseParser(config *ParseConfig) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}
	return &BaseParser{
		config: config,
		logger: logger.WithComponent("csv_parser"),
	}
}

// ParseContext holds state while a file is read
type ParseContext struct {
	Source     string
	LineNumber int
	Headers    []string
	HeaderMap  map[string]int
	ctx        context.Context
}

// NewParseContext creates a new parsing context
func NewParseContext(ctx context.Context, source string) *ParseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ParseContext{
		Source:    source,
		HeaderMap: make(map[string]int),
		ctx:       ctx,
	}
}

// IsCancelled checks if the parsing context has been cancelled
func (pc *ParseContext) IsCancelled() bool {
	select {
	case <-pc.ctx.Done():
		return true
	default:
		return false
	}
}

// GetColumnIndex returns the index of a column by name, or -1 if not found.
// Lookup falls back to a case-insensitive match.
func (pc *ParseContext) GetColumnIndex(name string) int {
	if index, exists := pc.HeaderMap[name]; exists {
		return index
	}
	for header, index := range pc.HeaderMap {
		if strings.EqualFold(header, name) {
			return index
		}
	}
	return -1
}

// NewReader wraps r in a configured csv.Reader
func (bp *BaseParser) NewReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = bp.config.Delimiter
	reader.Comment = bp.config.Comment
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1
	return reader
}

// ReadHeaders reads the header row and checks the required columns exist
func (bp *BaseParser) ReadHeaders(reader *csv.Reader, parseCtx *ParseContext, required []string) error {
	headers, err := reader.Read()
	if err == io.EOF {
		return apperrors.SeedError(parseCtx.Source, fmt.Errorf("file is empty")).
			WithSuggestion("the first row must name the columns, e.g. id,assignee,status")
	}
	if err != nil {
		return apperrors.SeedError(parseCtx.Source, err)
	}

	parseCtx.LineNumber++
	parseCtx.Headers = make([]string, len(headers))
	parseCtx.HeaderMap = make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		parseCtx.Headers[i] = h
		parseCtx.HeaderMap[h] = i
	}

	var missing []string
	for _, name := range required {
		if parseCtx.GetColumnIndex(name) == -1 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		bp.logger.WithFields(logger.Fields{
			"missing_headers":   missing,
			"available_headers": parseCtx.Headers,
		}).Error("Required headers are missing")
		return apperrors.SeedError(parseCtx.Source, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))).
			WithContext("headers", parseCtx.Headers)
	}

	bp.logger.WithField("headers", parseCtx.Headers).Debug("Read CSV headers")
	return nil
}

// ReadRecord returns the next non-empty record, or io.EOF
func (bp *BaseParser) ReadRecord(reader *csv.Reader, parseCtx *ParseContext) ([]string, error) {
	for {
		if parseCtx.IsCancelled() {
			return nil, parseCtx.ctx.Err()
		}

		record, err := reader.Read()
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		parseCtx.LineNumber = line

		if bp.config.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}
		return record, nil
	}
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// GetFieldValue returns the trimmed value of a named column, or "" when the
// column is absent from the header or the row is short.
func (bp *BaseParser) GetFieldValue(record []string, parseCtx *ParseContext, fieldName string) string {
	index := parseCtx.GetColumnIndex(fieldName)
	if index == -1 || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

// ParseStats holds statistics about a parsing operation
type ParseStats struct {
	Source        string                   `json:"source"`
	Format        Format                   `json:"format"`
	RecordsParsed int                      `json:"records_parsed"`
	RecordsValid  int                      `json:"records_valid"`
	ErrorCount    int                      `json:"error_count"`
	Errors        []*apperrors.RecordError `json:"errors,omitempty"`
}

// NewParseStats creates a new ParseStats instance
func NewParseStats(source string, format Format) *ParseStats {
	return &ParseStats{
		Source: source,
		Format: format,
		Errors: make([]*apperrors.RecordError, 0),
	}
}

// AddError records a rejected record
func (ps *ParseStats) AddError(err *apperrors.RecordError) {
	ps.Errors = append(ps.Errors, err)
	ps.ErrorCount++
}

// HasErrors returns true if any record was rejected
func (ps *ParseStats) HasErrors() bool {
	return ps.ErrorCount > 0
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d records from %s (%d valid), %d errors",
		ps.RecordsParsed, ps.Source, ps.RecordsValid, ps.ErrorCount)
}

// GetSampleErrors returns up to maxSamples error messages
func (ps *ParseStats) GetSampleErrors(maxSamples int) []string {
	if len(ps.Errors) == 0 {
		return nil
	}
	limit := len(ps.Errors)
	if maxSamples > 0 && maxSamples < limit {
		limit = maxSamples
	}
	samples := make([]string, limit)
	for i := 0; i < limit; i++ {
		samples[i] = ps.Errors[i].Error()
	}
	return samples
}
