// Package reporter renders tracker results for the command line.
//
// Every result type produced by the services can be written in three formats:
//   - Console: go-pretty tables for terminal display
//   - JSON: the result value itself, indented
//   - CSV: the primary table of the result, for spreadsheets
//
// Supported results include sync and reconciliation reports, auto-create
// summaries, dashboard metrics, batch pages, roster listings, catalog
// inspections and seed load summaries.
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON})
//	err = generator.GenerateReport(overview, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"segmentation-tracker/internal/batches"
	"segmentation-tracker/internal/metrics"
	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/reconciler"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// IncludeResults lists every batch outcome in reconciliation reports
	IncludeResults bool `json:"include_results"`

	// IncludeAnomalies lists duplicate, ambiguous and orphan catalog files
	IncludeAnomalies bool `json:"include_anomalies"`

	// MaxRows truncates console tables; 0 means no limit
	MaxRows int `json:"max_rows"`

	// Style is the console table style: light, rounded or ascii
	Style string `json:"style"`

	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:           FormatConsole,
		IncludeResults:   false,
		IncludeAnomalies: true,
		MaxRows:          50,
		Style:            "light",
		CSVDelimiter:     ',',
		CSVHeaders:       true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("max rows cannot be negative: %d", c.MaxRows)
	}
	if _, ok := tableStyles[c.Style]; !ok && c.Style != "" {
		return fmt.Errorf("unknown table style %q", c.Style)
	}
	return nil
}

var tableStyles = map[string]table.Style{
	"light":   table.StyleLight,
	"rounded": table.StyleRounded,
	"ascii":   table.StyleDefault,
}

// ReportGenerator writes results in the configured format
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if config.CSVDelimiter == 0 {
		config.CSVDelimiter = ','
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{config: config}, nil
}

// GenerateReport writes result to writer. The result must be one of the
// service result types; anything else is an error.
func (rg *ReportGenerator) GenerateReport(result interface{}, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	doc, err := rg.build(result)
	if err != nil {
		return err
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.writeConsole(doc, writer)
	case FormatJSON:
		return writeJSON(doc.payload, writer)
	case FormatCSV:
		return rg.writeCSV(doc, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

// field is one line of a key/value summary
type field struct {
	name  string
	value string
}

// section is one titled table
type section struct {
	title   string
	headers []string
	rows    [][]string
	numeric []int
}

// document is the format-neutral rendering of a result
type document struct {
	title    string
	payload  interface{}
	summary  []field
	sections []*section

	// primary is the section written as CSV; nil writes the summary
	primary *section
}

func (d *document) add(s section) *section {
	d.sections = append(d.sections, &s)
	return &s
}

func (rg *ReportGenerator) build(result interface{}) (*document, error) {
	switch r := result.(type) {
	case *reconciler.SyncResult:
		return rg.syncDocument(r), nil
	case *reconciler.ReconciliationReport:
		return rg.reconciliationDocument(r), nil
	case *reconciler.AutoCreateResult:
		return autoCreateDocument(r), nil
	case *reconciler.CatalogInspection:
		return catalogDocument(r), nil
	case *reconciler.BatchFilesReport:
		return batchFilesDocument(r), nil
	case *metrics.OverviewStats:
		return overviewDocument(r), nil
	case []metrics.TeamMemberStats:
		return teamDocument(r), nil
	case []metrics.DatePoint:
		return timeSeriesDocument(r), nil
	case *batches.Page:
		return pageDocument(r), nil
	case *models.Batch:
		return batchDocument(r), nil
	case *batches.DeletedBatch:
		return deletedDocument(r), nil
	case *batches.AssigneeAnalysis:
		return analysisDocument(r), nil
	case *batches.SeedResult:
		return seedDocument(r), nil
	case []models.TeamMember:
		return membersDocument(r), nil
	case MissingBatches:
		return missingDocument(r), nil
	default:
		return nil, fmt.Errorf("unsupported result type %T", result)
	}
}

// MissingBatches is the list of expected batch IDs absent from the store
type MissingBatches []string

func (rg *ReportGenerator) reconciliationSections(doc *document, r *reconciler.ReconciliationReport) {
	if rg.config.IncludeResults {
		s := doc.add(section{
			title:   "Batches",
			headers: []string{"Batch", "Files", "Uploaded", "Latest upload", "Updated", "Error"},
			numeric: []int{1},
		})
		for _, o := range r.Results {
			s.rows = append(s.rows, []string{
				o.BatchID, strconv.Itoa(o.FilesFound), yesNo(o.MongoUploaded),
				formatTimePtr(o.LatestUpload), yesNo(o.Updated), o.Error,
			})
		}
		doc.primary = s
	}

	if len(r.Failures) > 0 {
		s := doc.add(section{title: "Failures", headers: []string{"Batch", "Error"}})
		for _, f := range r.Failures {
			s.rows = append(s.rows, []string{f.RecordID, f.AppError.Error()})
		}
	}

	if rg.config.IncludeAnomalies && r.Anomalies != nil {
		if len(r.Anomalies.Duplicates) > 0 {
			s := doc.add(section{title: "Duplicate files", headers: []string{"Filename", "Copies"}, numeric: []int{1}})
			for _, d := range r.Anomalies.Duplicates {
				s.rows = append(s.rows, []string{d.Filename, strconv.Itoa(d.Count)})
			}
		}
		if len(r.Anomalies.Ambiguous) > 0 {
			s := doc.add(section{title: "Files matching several batches", headers: []string{"Filename", "Batches"}})
			for _, a := range r.Anomalies.Ambiguous {
				s.rows = append(s.rows, []string{a.Filename, strings.Join(a.BatchIDs, ", ")})
			}
		}
		if len(r.Anomalies.Orphans) > 0 {
			s := doc.add(section{title: "Files matching no batch", headers: []string{"Filename", "Uploaded", "Uploaded by"}})
			for _, e := range r.Anomalies.Orphans {
				s.rows = append(s.rows, []string{e.Filename, formatTime(e.UploadDate), e.UploadedBy()})
			}
		}
	}
}

func reconciliationSummary(r *reconciler.ReconciliationReport) []field {
	return []field{
		{"Run", r.RunID},
		{"Started", formatTime(r.StartedAt)},
		{"Duration", r.Duration.Round(time.Millisecond).String()},
		{"Batches", strconv.Itoa(r.TotalBatches)},
		{"Updated", strconv.Itoa(r.BatchesUpdated)},
		{"Failed", strconv.Itoa(r.BatchesFailed)},
		{"With files", strconv.Itoa(r.BatchesWithFiles)},
		{"Catalog files", strconv.Itoa(r.CatalogFiles)},
	}
}

func (rg *ReportGenerator) reconciliationDocument(r *reconciler.ReconciliationReport) *document {
	doc := &document{title: "RECONCILIATION REPORT", payload: r, summary: reconciliationSummary(r)}
	rg.reconciliationSections(doc, r)
	return doc
}

func (rg *ReportGenerator) syncDocument(r *reconciler.SyncResult) *document {
	doc := &document{title: "SYNC REPORT", payload: r}
	if r.AutoCreate != nil {
		doc.summary = append(doc.summary,
			field{"Catalog files scanned", strconv.Itoa(r.AutoCreate.FilesScanned)},
			field{"Batches created", strconv.Itoa(len(r.AutoCreate.Created))},
		)
	}
	if r.Reconciliation != nil {
		doc.summary = append(doc.summary, reconciliationSummary(r.Reconciliation)...)
		rg.reconciliationSections(doc, r.Reconciliation)
	}
	doc.summary = append(doc.summary, field{"Total duration", r.Duration.Round(time.Millisecond).String()})
	if r.AutoCreate != nil && len(r.AutoCreate.Created) > 0 {
		s := doc.add(section{title: "Created batches", headers: []string{"Batch"}})
		for _, id := range r.AutoCreate.Created {
			s.rows = append(s.rows, []string{id})
		}
	}
	return doc
}

func autoCreateDocument(r *reconciler.AutoCreateResult) *document {
	doc := &document{title: "AUTO-CREATE", payload: r, summary: []field{
		{"Files scanned", strconv.Itoa(r.FilesScanned)},
		{"Created", strconv.Itoa(len(r.Created))},
		{"Already present", strconv.Itoa(len(r.Existing))},
		{"Without batch ID", strconv.Itoa(len(r.Unnamed))},
		{"Failed", strconv.Itoa(len(r.Failures))},
	}}
	s := doc.add(section{title: "Created batches", headers: []string{"Batch"}})
	for _, id := range r.Created {
		s.rows = append(s.rows, []string{id})
	}
	doc.primary = s
	if len(r.Unnamed) > 0 {
		u := doc.add(section{title: "Files without batch ID", headers: []string{"Filename"}})
		for _, name := range r.Unnamed {
			u.rows = append(u.rows, []string{name})
		}
	}
	if len(r.Failures) > 0 {
		f := doc.add(section{title: "Failures", headers: []string{"Batch", "Error"}})
		for _, e := range r.Failures {
			f.rows = append(f.rows, []string{e.RecordID, e.AppError.Error()})
		}
	}
	return doc
}

func catalogFileRows(files []reconciler.CatalogFile) [][]string {
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{f.Filename, formatTime(f.UploadDate), formatFloat(f.SizeMB, 2), f.UploadedBy})
	}
	return rows
}

func catalogDocument(r *reconciler.CatalogInspection) *document {
	doc := &document{title: "CATALOG", payload: r, summary: []field{
		{"Entries", strconv.Itoa(r.Stats.TotalEntries)},
		{"Unique filenames", strconv.Itoa(r.Stats.UniqueFilenames)},
		{"Duplicated filenames", strconv.Itoa(r.Stats.DuplicatedFilenames)},
		{"Newest upload", formatTimePtr(r.Stats.Newest)},
		{"Oldest upload", formatTimePtr(r.Stats.Oldest)},
		{"Batch IDs found", strconv.Itoa(len(r.Groups))},
	}}
	doc.add(section{
		title:   "Recent files",
		headers: []string{"Filename", "Uploaded", "Size MB", "Uploaded by"},
		rows:    catalogFileRows(r.RecentFiles),
		numeric: []int{2},
	})
	g := doc.add(section{title: "Batch IDs in filenames", headers: []string{"Batch", "Files", "Filenames"}, numeric: []int{1}})
	for _, group := range r.Groups {
		g.rows = append(g.rows, []string{group.BatchID, strconv.Itoa(len(group.Filenames)), strings.Join(group.Filenames, ", ")})
	}
	doc.primary = g
	if len(r.Unnamed) > 0 {
		u := doc.add(section{title: "Files without batch ID", headers: []string{"Filename"}})
		for _, name := range r.Unnamed {
			u.rows = append(u.rows, []string{name})
		}
	}
	return doc
}

func batchFilesDocument(r *reconciler.BatchFilesReport) *document {
	doc := &document{title: "FILES FOR " + r.BatchID, payload: r, summary: []field{
		{"Batch", r.BatchID},
		{"Files", strconv.Itoa(r.TotalFiles)},
		{"Total MB", formatFloat(r.TotalSizeMB, 2)},
		{"Latest upload", formatTimePtr(r.LastFileUpload)},
		{"Marked uploaded", yesNo(r.MongoUploaded)},
		{"In sync", yesNo(r.InSync)},
	}}
	doc.primary = doc.add(section{
		title:   "Files",
		headers: []string{"Filename", "Uploaded", "Size MB", "Uploaded by"},
		rows:    catalogFileRows(r.Files),
		numeric: []int{2},
	})
	return doc
}

func overviewDocument(r *metrics.OverviewStats) *document {
	return &document{title: "OVERVIEW", payload: r, summary: []field{
		{"Total batches", strconv.Itoa(r.TotalBatches)},
		{"Completed", strconv.Itoa(r.CompletedBatches)},
		{"In progress", strconv.Itoa(r.InProgressBatches)},
		{"Pending", strconv.Itoa(r.PendingBatches)},
		{"Unassigned", strconv.Itoa(r.UnassignedBatches)},
		{"Uploaded", strconv.Itoa(r.UploadedBatches)},
		{"Completion rate", formatPercent(r.CompletionRate)},
	}}
}

func teamDocument(r []metrics.TeamMemberStats) *document {
	doc := &document{title: "TEAM", payload: r}
	s := doc.add(section{
		headers: []string{"Assignee", "Total", "Completed", "In progress", "Pending", "Completion", "Efficiency", "Recent", "In roster"},
		numeric: []int{1, 2, 3, 4, 5, 6},
	})
	for _, m := range r {
		s.rows = append(s.rows, []string{
			m.Assignee, strconv.Itoa(m.Total), strconv.Itoa(m.Completed), strconv.Itoa(m.InProgress),
			strconv.Itoa(m.Pending), formatPercent(m.CompletionRate), formatPercent(m.Efficiency),
			strings.Join(m.RecentBatches, ", "), yesNo(m.InRoster),
		})
	}
	doc.primary = s
	return doc
}

func timeSeriesDocument(r []metrics.DatePoint) *document {
	doc := &document{title: "PROGRESS", payload: r}
	s := doc.add(section{
		headers: []string{"Date", "Total", "Completed", "In progress", "Pending", "Completion"},
		numeric: []int{1, 2, 3, 4, 5},
	})
	for _, p := range r {
		s.rows = append(s.rows, []string{
			p.Date, strconv.Itoa(p.Total), strconv.Itoa(p.Completed), strconv.Itoa(p.InProgress),
			strconv.Itoa(p.Pending), formatPercent(p.CompletionRate),
		})
	}
	doc.primary = s
	return doc
}

func batchRow(b *models.Batch) []string {
	files := ""
	if b.FileInfo != nil {
		files = strconv.Itoa(b.FileInfo.FileCount)
	}
	return []string{
		b.ID, b.AssigneeName(), string(b.Status), b.Metadata.AssignedAt, b.Metadata.DueDate,
		b.Metadata.Priority, yesNo(b.MongoUploaded), files,
	}
}

var batchHeaders = []string{"ID", "Assignee", "Status", "Assigned", "Due", "Priority", "Uploaded", "Files"}

func pageDocument(r *batches.Page) *document {
	doc := &document{title: "BATCHES", payload: r, summary: []field{
		{"Page", fmt.Sprintf("%d of %d", r.Pagination.Page, r.Pagination.TotalPages)},
		{"Per page", strconv.Itoa(r.Pagination.PerPage)},
		{"Total", strconv.Itoa(r.Pagination.Total)},
	}}
	s := doc.add(section{headers: batchHeaders, numeric: []int{7}})
	for _, b := range r.Batches {
		s.rows = append(s.rows, batchRow(b))
	}
	doc.primary = s
	return doc
}

func batchDocument(b *models.Batch) *document {
	doc := &document{title: "BATCH " + b.ID, payload: b, summary: []field{
		{"ID", b.ID},
		{"Assignee", b.AssigneeName()},
		{"Status", fmt.Sprintf("%s (%s)", b.Status, b.Status.Label())},
		{"Folder", b.Folder},
		{"Tasks", strings.Join(b.Tasks, ", ")},
		{"Assigned", b.Metadata.AssignedAt},
		{"Due", b.Metadata.DueDate},
		{"Priority", b.Metadata.Priority},
		{"Reviewed", formatTimePtr(b.Metadata.ReviewedAt)},
		{"Uploaded", yesNo(b.MongoUploaded)},
		{"Comments", b.Comments},
	}}
	if b.FileInfo != nil {
		doc.summary = append(doc.summary,
			field{"Files", strconv.Itoa(b.FileInfo.FileCount)},
			field{"Latest upload", formatTimePtr(b.FileInfo.LastFileUpload)},
		)
	}
	return doc
}

func deletedDocument(r *batches.DeletedBatch) *document {
	assignee := ""
	if !models.IsUnassigned(r.Assignee) {
		assignee = *r.Assignee
	}
	return &document{title: "DELETED", payload: r, summary: []field{
		{"ID", r.ID},
		{"Assignee", assignee},
		{"Status", string(r.Status)},
	}}
}

func analysisDocument(r *batches.AssigneeAnalysis) *document {
	doc := &document{title: "ASSIGNEES", payload: r, summary: []field{
		{"Total batches", strconv.Itoa(r.TotalBatches)},
		{"Unassigned", strconv.Itoa(r.Unassigned)},
		{"Assigned to roster members", strconv.Itoa(r.AssignedMembers)},
		{"Assigned to others", strconv.Itoa(r.AssignedOthers)},
	}}
	s := doc.add(section{title: "Roster members", headers: []string{"Assignee", "Batches", "In roster"}, numeric: []int{1}})
	for _, c := range r.RosterMembers {
		s.rows = append(s.rows, []string{c.Assignee, strconv.Itoa(c.Count), "yes"})
	}
	others := doc.add(section{title: "Not in roster", headers: []string{"Assignee", "Batches", "In roster"}, numeric: []int{1}})
	for _, c := range r.NonMembers {
		others.rows = append(others.rows, []string{c.Assignee, strconv.Itoa(c.Count), "no"})
	}

	// CSV gets both groups in one table
	combined := section{headers: s.headers}
	combined.rows = append(append(combined.rows, s.rows...), others.rows...)
	doc.primary = &combined
	return doc
}

func seedDocument(r *batches.SeedResult) *document {
	doc := &document{title: "SEED", payload: r, summary: []field{
		{"Loaded", yesNo(r.Loaded)},
		{"Existing before", strconv.Itoa(r.ExistingCount)},
		{"Removed", strconv.Itoa(r.Removed)},
		{"Inserted", strconv.Itoa(r.LoadedCount)},
		{"In file", strconv.Itoa(r.TotalInFile)},
		{"Skipped", strconv.Itoa(len(r.Skipped))},
	}}
	if len(r.Skipped) > 0 {
		s := doc.add(section{title: "Skipped (already present)", headers: []string{"Batch"}})
		for _, id := range r.Skipped {
			s.rows = append(s.rows, []string{id})
		}
	}
	if len(r.Failures) > 0 {
		s := doc.add(section{title: "Failures", headers: []string{"Batch", "Error"}})
		for _, f := range r.Failures {
			s.rows = append(s.rows, []string{f.RecordID, f.AppError.Error()})
		}
	}
	return doc
}

func membersDocument(r []models.TeamMember) *document {
	doc := &document{title: "ROSTER", payload: r}
	s := doc.add(section{headers: []string{"Name", "Role", "Email", "Active", "Added"}})
	for _, m := range r {
		s.rows = append(s.rows, []string{m.Name, m.Role, m.Email, yesNo(m.Active), formatTime(m.AddedAt)})
	}
	doc.primary = s
	return doc
}

func missingDocument(r MissingBatches) *document {
	doc := &document{title: "MISSING BATCHES", payload: map[string]interface{}{
		"missing": []string(r),
		"count":   len(r),
	}}
	s := doc.add(section{headers: []string{"Batch"}})
	for _, id := range r {
		s.rows = append(s.rows, []string{id})
	}
	doc.primary = s
	return doc
}

func (rg *ReportGenerator) writeConsole(doc *document, writer io.Writer) error {
	if doc.title != "" {
		fmt.Fprintf(writer, "%s\n", doc.title)
	}

	if len(doc.summary) > 0 {
		tw := rg.newTable(writer)
		for _, f := range doc.summary {
			tw.AppendRow(table.Row{f.name, f.value})
		}
		tw.Render()
	}

	for _, s := range doc.sections {
		fmt.Fprintln(writer)
		if s.title != "" {
			fmt.Fprintf(writer, "=== %s (%d) ===\n", strings.ToUpper(s.title), len(s.rows))
		}
		if len(s.rows) == 0 {
			fmt.Fprintln(writer, "(none)")
			continue
		}
		rg.renderSection(s, writer)
	}
	return nil
}

func (rg *ReportGenerator) newTable(writer io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(writer)
	if style, ok := tableStyles[rg.config.Style]; ok {
		tw.SetStyle(style)
	}
	return tw
}

func (rg *ReportGenerator) renderSection(s *section, writer io.Writer) {
	tw := rg.newTable(writer)

	header := make(table.Row, len(s.headers))
	for i, h := range s.headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	rows := s.rows
	if rg.config.MaxRows > 0 && len(rows) > rg.config.MaxRows {
		rows = rows[:rg.config.MaxRows]
		tw.AppendFooter(table.Row{fmt.Sprintf("... and %d more", len(s.rows)-rg.config.MaxRows)})
	}
	for _, row := range rows {
		r := make(table.Row, len(s.headers))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(s.numeric))
	for _, col := range s.numeric {
		configs = append(configs, table.ColumnConfig{Number: col + 1, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	tw.Render()
}

func writeJSON(payload interface{}, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func (rg *ReportGenerator) writeCSV(doc *document, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	headers := []string{"field", "value"}
	var rows [][]string
	if doc.primary != nil {
		headers = doc.primary.headers
		rows = doc.primary.rows
	} else {
		for _, f := range doc.summary {
			rows = append(rows, []string{f.name, f.value})
		}
	}

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}
	for _, row := range rows {
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func formatFloat(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}

func formatPercent(v float64) string {
	return formatFloat(v, 1) + "%"
}
