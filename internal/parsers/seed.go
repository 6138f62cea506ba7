package parsers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/reconciler"
	apperrors "segmentation-tracker/pkg/errors"
	"segmentation-tracker/pkg/logger"
)

// seedDocument is the shape of batches.json
type seedDocument struct {
	Batches []json.RawMessage `json:"batches"`
}

// SeedParser reads batch seed files in JSON, YAML or CSV
type SeedParser struct {
	*BaseParser
	config *SeedParserConfig
	logger logger.Logger
}

// NewSeedParser creates a seed parser. A nil config uses the defaults.
func NewSeedParser(config *SeedParserConfig) (*SeedParser, error) {
	if config == nil {
		config = DefaultSeedParserConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "seed", config.Format, err)
	}
	return &SeedParser{
		BaseParser: NewBaseParser(config.CSV),
		config:     config,
		logger:     logger.WithComponent("seed_parser"),
	}, nil
}

// ParseFile opens path and parses it, inferring the format from the
// extension unless the config pins one.
func (p *SeedParser) ParseFile(ctx context.Context, path string) ([]*models.Batch, *ParseStats, error) {
	format := p.config.Format
	if format == FormatAuto {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, nil, apperrors.SeedError(path, err)
		}
		format = detected
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.SeedError(path, err)
	}
	defer f.Close()

	return p.ParseReader(ctx, f, format, path)
}

// ParseReader parses seed records from r. Rejected records are reported in
// the stats; a malformed document fails the whole call.
func (p *SeedParser) ParseReader(ctx context.Context, r io.Reader, format Format, source string) ([]*models.Batch, *ParseStats, error) {
	op := logger.NewOperationLogger("parse_seed", p.logger).WithField("source", source).WithField("format", format)
	stats := NewParseStats(source, format)

	var (
		batches []*models.Batch
		err     error
	)
	switch format {
	case FormatJSON:
		batches, err = p.parseJSON(ctx, r, stats)
	case FormatYAML:
		batches, err = p.parseYAML(ctx, r, stats)
	case FormatCSV:
		batches, err = p.parseCSV(ctx, r, stats)
	default:
		err = apperrors.SeedError(source, fmt.Errorf("unsupported format %q", format))
	}
	if err != nil {
		op.Error(err, "Seed parsing failed")
		return nil, stats, err
	}

	stats.RecordsValid = len(batches)
	if stats.HasErrors() {
		op.WithField("errors", stats.ErrorCount).Warning(stats.String())
	} else {
		op.Success(stats.String())
	}
	return batches, stats, nil
}

// accept normalizes b and records a rejection. It returns false when the
// error budget is exhausted.
func (p *SeedParser) accept(b *models.Batch, line int, stats *ParseStats, out *[]*models.Batch, pre *reconciler.BatchPreprocessor) bool {
	stats.RecordsParsed++
	if err := pre.Normalize(b); err != nil {
		return p.reject(b.ID, apperrors.ValidationError(apperrors.CodeMissingField, "batch", b.ID, err), line, stats)
	}
	*out = append(*out, b)
	return true
}

func (p *SeedParser) reject(id string, err error, line int, stats *ParseStats) bool {
	stats.AddError(apperrors.NewRecordError(id, err).AtLine(stats.Source, line))
	return p.config.MaxErrors <= 0 || stats.ErrorCount < p.config.MaxErrors
}

func (p *SeedParser) parseJSON(ctx context.Context, r io.Reader, stats *ParseStats) ([]*models.Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.SeedError(stats.Source, err)
	}

	var doc seedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.SeedError(stats.Source, err)
	}
	if doc.Batches == nil {
		return nil, apperrors.SeedError(stats.Source, fmt.Errorf(`missing "batches" array`))
	}

	pre := reconciler.NewBatchPreprocessor(nil)
	batches := make([]*models.Batch, 0, len(doc.Batches))
	for i, raw := range doc.Batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var b models.Batch
		if err := json.Unmarshal(raw, &b); err != nil {
			stats.RecordsParsed++
			if !p.reject(fmt.Sprintf("#%d", i+1), apperrors.SeedError(stats.Source, err), lineOf(data, raw), stats) {
				break
			}
			continue
		}
		if !p.accept(&b, lineOf(data, raw), stats, &batches, pre) {
			break
		}
	}
	return batches, nil
}

// lineOf returns the 1-based line where raw starts inside data
func lineOf(data, raw []byte) int {
	idx := bytes.Index(data, raw)
	if idx < 0 {
		return 0
	}
	return bytes.Count(data[:idx], []byte{'\n'}) + 1
}

func (p *SeedParser) parseYAML(ctx context.Context, r io.Reader, stats *ParseStats) ([]*models.Batch, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if err == io.EOF {
			err = fmt.Errorf("file is empty")
		}
		return nil, apperrors.SeedError(stats.Source, err)
	}

	items, err := yamlBatchItems(&root)
	if err != nil {
		return nil, apperrors.SeedError(stats.Source, err)
	}

	pre := reconciler.NewBatchPreprocessor(nil)
	batches := make([]*models.Batch, 0, len(items))
	for i, node := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var b models.Batch
		if err := node.Decode(&b); err != nil {
			stats.RecordsParsed++
			if !p.reject(fmt.Sprintf("#%d", i+1), apperrors.SeedError(stats.Source, err), node.Line, stats) {
				break
			}
			continue
		}
		if !p.accept(&b, node.Line, stats, &batches, pre) {
			break
		}
	}
	return batches, nil
}

// yamlBatchItems accepts either a mapping with a batches key or a bare list
func yamlBatchItems(root *yaml.Node) ([]*yaml.Node, error) {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	switch doc.Kind {
	case yaml.SequenceNode:
		return doc.Content, nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(doc.Content); i += 2 {
			if doc.Content[i].Value == "batches" {
				list := doc.Content[i+1]
				if list.Kind != yaml.SequenceNode {
					return nil, fmt.Errorf("line %d: batches must be a list", list.Line)
				}
				return list.Content, nil
			}
		}
		return nil, fmt.Errorf(`missing "batches" list`)
	default:
		return nil, fmt.Errorf("line %d: expected a list of batches", doc.Line)
	}
}

func (p *SeedParser) parseCSV(ctx context.Context, r io.Reader, stats *ParseStats) ([]*models.Batch, error) {
	reader := p.NewReader(r)
	parseCtx := NewParseContext(ctx, stats.Source)
	if err := p.ReadHeaders(reader, parseCtx, []string{p.config.GetColumnName(ColumnID)}); err != nil {
		return nil, err
	}

	pre := reconciler.NewBatchPreprocessor(nil)
	var batches []*models.Batch
	for {
		record, err := p.ReadRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if err != nil {
			line := parseCtx.LineNumber
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			stats.RecordsParsed++
			if !p.reject("", apperrors.SeedError(stats.Source, err), line, stats) {
				break
			}
			continue
		}

		b, err := p.batchFromRecord(record, parseCtx)
		if err != nil {
			stats.RecordsParsed++
			if !p.reject(b.ID, err, parseCtx.LineNumber, stats) {
				break
			}
			continue
		}
		if !p.accept(b, parseCtx.LineNumber, stats, &batches, pre) {
			break
		}
	}
	return batches, nil
}

func (p *SeedParser) batchFromRecord(record []string, parseCtx *ParseContext) (*models.Batch, error) {
	field := func(name string) string {
		return p.GetFieldValue(record, parseCtx, p.config.GetColumnName(name))
	}

	b := &models.Batch{
		ID:       field(ColumnID),
		Folder:   field(ColumnFolder),
		Status:   models.Status(field(ColumnStatus)),
		Comments: field(ColumnComments),
		Metadata: models.Metadata{
			AssignedAt: field(ColumnAssignedAt),
			DueDate:    field(ColumnDueDate),
			Priority:   field(ColumnPriority),
		},
	}
	if assignee := field(ColumnAssignee); assignee != "" {
		b.Assignee = models.StringPtr(assignee)
	}

	if status := field(ColumnStatus); status != "" {
		parsed, err := models.ParseStatus(status)
		if err != nil {
			return b, apperrors.ValidationError(apperrors.CodeInvalidStatus, ColumnStatus, status, err)
		}
		b.Status = parsed
	}

	if tasks := field(ColumnTasks); tasks != "" {
		for _, task := range strings.Split(tasks, p.config.TaskSeparator) {
			if task = strings.TrimSpace(task); task != "" {
				b.Tasks = append(b.Tasks, task)
			}
		}
	}

	if uploaded := field(ColumnMongoUploaded); uploaded != "" {
		v, err := strconv.ParseBool(uploaded)
		if err != nil {
			return b, apperrors.ValidationError(apperrors.CodeMissingField, ColumnMongoUploaded, uploaded, err)
		}
		b.MongoUploaded = v
	}

	return b, nil
}
