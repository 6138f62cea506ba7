package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"segmentation-tracker/cmd/segtracker/config"
	"segmentation-tracker/internal/models"
	"segmentation-tracker/internal/store/memstore"
	"segmentation-tracker/pkg/errors"
)

type testStores struct {
	batches *memstore.BatchStore
	catalog *memstore.FileCatalog
	roster  *memstore.RosterStore
}

// useMemoryStores makes every command in the test share one set of stores
func useMemoryStores(t *testing.T, batches ...*models.Batch) *testStores {
	t.Helper()
	ts := &testStores{
		batches: memstore.NewBatchStore(batches...),
		catalog: memstore.NewFileCatalog(),
		roster:  memstore.NewRosterStore(),
	}
	orig := openStores
	openStores = func(*config.Config) (*stores, error) {
		return memoryStores(ts.batches, ts.catalog, ts.roster), nil
	}
	t.Cleanup(func() { openStores = orig })
	return ts
}

// resetFlags restores every flag to its default between runs
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decode(t *testing.T, out string, v interface{}) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
}

func seededBatch(id, assignee string, status models.Status, assignedAt string) *models.Batch {
	b := models.NewBatch(id)
	if assignee != "" {
		b.Assignee = models.StringPtr(assignee)
	}
	b.Status = status
	b.Metadata.AssignedAt = assignedAt
	return b
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string][]string{
		"serve":   nil,
		"sync":    nil,
		"metrics": {"overview", "team", "progress"},
		"batch":   {"list", "get", "create", "update", "rename", "delete", "files", "missing"},
		"roster":  {"list", "add", "analyze"},
		"seed":    {"load"},
		"catalog": {"inspect", "autocreate"},
	}

	for name, subs := range want {
		c, _, err := rootCmd.Find([]string{name})
		if err != nil || c.Name() != name {
			t.Errorf("command %q not registered", name)
			continue
		}
		for _, sub := range subs {
			if sc, _, err := rootCmd.Find([]string{name, sub}); err != nil || sc.Name() != sub {
				t.Errorf("command %q %q not registered", name, sub)
			}
		}
	}

	for _, flag := range []string{"config", "profile", "verbose", "output-format", "output-file", "log-level", "driver"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s not found", flag)
		}
	}
}

func TestBatchLifecycle(t *testing.T) {
	ts := useMemoryStores(t, seededBatch("batch_1", "Flor", models.StatusSegmented, "2025-03-01"))

	out, _, err := execute(t, "batch", "create", "--assignee", "Ceci", "--status", "FS", "-f", "json")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	var created models.Batch
	decode(t, out, &created)
	if created.ID != "batch_2" || created.Assignee == nil || *created.Assignee != "Ceci" {
		t.Errorf("unexpected created batch: %+v", created)
	}

	if _, _, err := execute(t, "batch", "update", "batch_2", "--status", "S", "--due-date", "2025-04-01"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	got, err := ts.batches.Get(context.Background(), "batch_2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusSegmented || got.Metadata.DueDate != "2025-04-01" {
		t.Errorf("update not applied: %+v", got)
	}

	if _, _, err := execute(t, "batch", "update", "batch_2", "--unassign"); err != nil {
		t.Fatalf("unassign failed: %v", err)
	}
	got, _ = ts.batches.Get(context.Background(), "batch_2")
	if got.Assignee != nil {
		t.Errorf("expected assignee cleared, got %q", *got.Assignee)
	}

	if _, _, err := execute(t, "batch", "rename", "batch_2", "batch_20"); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	out, _, err = execute(t, "batch", "list", "-f", "json")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var page struct {
		Batches []models.Batch `json:"batches"`
	}
	decode(t, out, &page)
	if len(page.Batches) != 2 || page.Batches[1].ID != "batch_20" {
		t.Errorf("unexpected listing: %+v", page.Batches)
	}

	if _, _, err := execute(t, "batch", "delete", "batch_20"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, _, err = execute(t, "batch", "get", "batch_20")
	if !errors.IsKind(err, errors.CodeBatchNotFound) {
		t.Errorf("expected batch_not_found after delete, got %v", err)
	}
}

func TestBatchCommandErrors(t *testing.T) {
	useMemoryStores(t, seededBatch("batch_1", "Flor", models.StatusNotSegmented, ""))

	tests := []struct {
		name string
		args []string
		code errors.ErrorCode
	}{
		{"duplicate id", []string{"batch", "create", "--id", "batch_1"}, errors.CodeDuplicateIdentifier},
		{"assignee outside roster", []string{"batch", "create", "--assignee", "Pablo"}, errors.CodeInvalidAssignee},
		{"invalid status", []string{"batch", "update", "batch_1", "--status", "DONE"}, errors.CodeInvalidStatus},
		{"empty update", []string{"batch", "update", "batch_1"}, errors.CodeMissingField},
		{"assignee and unassign", []string{"batch", "update", "batch_1", "--assignee", "Flor", "--unassign"}, errors.CodeInvalidAssignee},
		{"missing batch", []string{"batch", "update", "batch_9", "--status", "S"}, errors.CodeBatchNotFound},
		{"no expected list", []string{"batch", "missing"}, errors.CodeMissingConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if !errors.IsKind(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestBatchMissing(t *testing.T) {
	useMemoryStores(t,
		seededBatch("batch_1", "", models.StatusNotSegmented, ""),
		seededBatch("batch_3", "", models.StatusNotSegmented, ""),
	)

	out, _, err := execute(t, "batch", "missing", "--expected", "batch_1,batch_2, batch_3,batch_4", "-f", "json")
	if err != nil {
		t.Fatal(err)
	}
	var missing struct {
		Missing []string `json:"missing"`
		Count   int      `json:"count"`
	}
	decode(t, out, &missing)
	if missing.Count != 2 || strings.Join(missing.Missing, ",") != "batch_2,batch_4" {
		t.Errorf("unexpected missing list: %+v", missing)
	}
}

func TestSyncCommand(t *testing.T) {
	ts := useMemoryStores(t,
		seededBatch("batch_1", "Flor", models.StatusSegmented, "2025-03-01"),
		seededBatch("batch_2", "Ceci", models.StatusInProgress, "2025-03-02"),
	)
	upload := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	ts.catalog.Add(
		models.CatalogEntry{Filename: "batch_1.zip", UploadDate: upload, Length: 1 << 20},
		models.CatalogEntry{Filename: "batch_7.tar.xz", UploadDate: upload, Length: 1 << 20},
	)

	out, _, err := execute(t, "sync", "--dry-run", "-f", "json")
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	var result struct {
		AutoCreate     json.RawMessage `json:"auto_create"`
		Reconciliation struct {
			BatchesUpdated int `json:"batches_updated"`
		} `json:"reconciliation"`
	}
	decode(t, out, &result)
	// batch_1 gains files and batch_2 has no file_info yet
	if result.Reconciliation.BatchesUpdated != 2 || result.AutoCreate != nil {
		t.Errorf("unexpected dry run result: %s", out)
	}
	b, _ := ts.batches.Get(context.Background(), "batch_1")
	if b.MongoUploaded {
		t.Error("dry run must not write")
	}

	_, stderr, err := execute(t, "sync", "--auto-create", "--progress", "-f", "json")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if !strings.Contains(stderr, "Reconciling:") {
		t.Errorf("expected progress on stderr, got %q", stderr)
	}
	b, _ = ts.batches.Get(context.Background(), "batch_1")
	if !b.MongoUploaded || b.FileInfo == nil {
		t.Errorf("expected batch_1 reconciled, got %+v", b)
	}
	created, err := ts.batches.Get(context.Background(), "batch_7")
	if err != nil {
		t.Fatalf("expected batch_7 auto-created: %v", err)
	}
	if !created.MongoUploaded || created.Assignee != nil {
		t.Errorf("unexpected auto-created batch: %+v", created)
	}
}

func TestSyncReportsStoreFailures(t *testing.T) {
	ts := useMemoryStores(t, seededBatch("batch_1", "Flor", models.StatusSegmented, ""))
	ts.catalog.Add(models.CatalogEntry{Filename: "batch_1.zip", UploadDate: time.Now()})
	ts.batches.Fail = func(op, id string) error {
		if op == "update" {
			return errors.StoreUnavailable("batches", nil)
		}
		return nil
	}

	_, _, err := execute(t, "sync", "-f", "json")
	if !errors.IsKind(err, errors.CodeUpdateFailed) {
		t.Fatalf("expected update_failed, got %v", err)
	}
	if code := (&CLIErrorHandler{out: &bytes.Buffer{}}).handleAppError(mustAppError(t, err)); code != 6 {
		t.Errorf("expected store exit code 6, got %d", code)
	}
}

func mustAppError(t *testing.T, err error) *errors.AppError {
	t.Helper()
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	return appErr
}

func TestMetricsCommands(t *testing.T) {
	useMemoryStores(t,
		seededBatch("batch_1", "Flor", models.StatusSegmented, "2025-03-01"),
		seededBatch("batch_2", "Flor", models.StatusInProgress, "2025-03-01"),
		seededBatch("batch_3", "", models.StatusNotSegmented, "2025-03-02"),
	)

	out, _, err := execute(t, "metrics", "overview", "-f", "json")
	if err != nil {
		t.Fatal(err)
	}
	var overview struct {
		TotalBatches   int     `json:"total_batches"`
		CompletionRate float64 `json:"completion_rate"`
	}
	decode(t, out, &overview)
	if overview.TotalBatches != 3 || overview.CompletionRate != 33.3 {
		t.Errorf("unexpected overview: %+v", overview)
	}

	out, _, err = execute(t, "metrics", "team", "-f", "json")
	if err != nil {
		t.Fatal(err)
	}
	var team []struct {
		Assignee   string  `json:"assignee"`
		Total      int     `json:"total"`
		Efficiency float64 `json:"efficiency"`
	}
	decode(t, out, &team)
	// five default roster members plus the Unassigned group
	if len(team) != 6 {
		t.Fatalf("expected 6 team rows, got %d: %s", len(team), out)
	}

	out, _, err = execute(t, "metrics", "progress", "--assignees", "Unassigned", "-f", "json")
	if err != nil {
		t.Fatal(err)
	}
	var series []struct {
		Date  string `json:"date"`
		Total int    `json:"total"`
	}
	decode(t, out, &series)
	if len(series) != 1 || series[0].Date != "2025-03-02" {
		t.Errorf("unexpected series: %+v", series)
	}

	_, _, err = execute(t, "metrics", "progress", "--assignees", "")
	if !errors.IsKind(err, errors.CodeInvalidFilter) {
		t.Errorf("expected invalid_filter for empty assignee list, got %v", err)
	}
	_, _, err = execute(t, "metrics", "progress", "--from", "2025-03-05", "--to", "2025-03-01")
	if !errors.IsKind(err, errors.CodeInvalidFilter) {
		t.Errorf("expected invalid_filter for inverted range, got %v", err)
	}
}

func TestRosterCommands(t *testing.T) {
	useMemoryStores(t, seededBatch("batch_1", "Pablo", models.StatusNotSegmented, ""))

	out, _, err := execute(t, "roster", "add", "Lucia", "--role", "Revisora", "-f", "json")
	if err != nil {
		t.Fatal(err)
	}
	var added []models.TeamMember
	decode(t, out, &added)
	if len(added) != 1 || added[0].Name != "Lucia" || added[0].Role != "Revisora" {
		t.Errorf("unexpected member: %+v", added)
	}

	_, _, err = execute(t, "roster", "add", "Lucia")
	if !errors.IsKind(err, errors.CodeDuplicateIdentifier) {
		t.Errorf("expected duplicate_identifier, got %v", err)
	}

	out, _, err = execute(t, "roster", "list", "-f", "json")
	if err != nil {
		t.Fatal(err)
	}
	var members []models.TeamMember
	decode(t, out, &members)
	if len(members) != 6 {
		t.Errorf("expected 5 defaults plus Lucia, got %d", len(members))
	}

	out, _, err = execute(t, "roster", "analyze", "-f", "json")
	if err != nil {
		t.Fatal(err)
	}
	var analysis struct {
		AssignedOthers int `json:"assigned_to_non_members"`
	}
	decode(t, out, &analysis)
	if analysis.AssignedOthers != 1 {
		t.Errorf("expected Pablo counted outside the roster: %s", out)
	}
}

func TestSeedLoad(t *testing.T) {
	ts := useMemoryStores(t, seededBatch("batch_99", "", models.StatusNotSegmented, ""))

	path := filepath.Join(t.TempDir(), "batches.json")
	seed := `{"batches": [
		{"id": "batch_1", "assignee": "Flor", "status": "S", "metadata": {"assigned_at": "2025-03-01"}},
		{"id": "batch_2", "status": "NS"}
	]}`
	if err := os.WriteFile(path, []byte(seed), 0644); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := execute(t, "seed", "load", "--file", path, "-f", "json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stderr, "use --force") {
		t.Errorf("expected hint about --force, got %q", stderr)
	}
	if n, _ := ts.batches.Count(context.Background()); n != 1 {
		t.Errorf("store should be untouched without --force, has %d", n)
	}

	out, _, err := execute(t, "seed", "load", "--file", path, "--force", "-f", "json")
	if err != nil {
		t.Fatal(err)
	}
	var result struct {
		Loaded      bool `json:"loaded"`
		Removed     int  `json:"removed"`
		LoadedCount int  `json:"loaded_count"`
	}
	decode(t, out, &result)
	if !result.Loaded || result.Removed != 1 || result.LoadedCount != 2 {
		t.Errorf("unexpected seed result: %s", out)
	}

	_, _, err = execute(t, "seed", "load", "--file", filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Error("expected error for missing seed file")
	}
}

func TestCatalogCommands(t *testing.T) {
	ts := useMemoryStores(t, seededBatch("batch_1", "", models.StatusNotSegmented, ""))
	upload := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	ts.catalog.Add(
		models.CatalogEntry{Filename: "batch_1.zip", UploadDate: upload},
		models.CatalogEntry{Filename: "batch_4.zip", UploadDate: upload.Add(time.Hour)},
		models.CatalogEntry{Filename: "notes.txt", UploadDate: upload.Add(2 * time.Hour)},
	)

	out, _, err := execute(t, "catalog", "inspect", "--limit", "2", "-f", "console")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "batch_4.zip") {
		t.Errorf("expected recent uploads in console output:\n%s", out)
	}

	out, _, err = execute(t, "catalog", "autocreate", "-f", "json")
	if err != nil {
		t.Fatal(err)
	}
	var result struct {
		Created  []string `json:"created"`
		Existing []string `json:"existing"`
	}
	decode(t, out, &result)
	if strings.Join(result.Created, ",") != "batch_4" || strings.Join(result.Existing, ",") != "batch_1" {
		t.Errorf("unexpected auto-create result: %s", out)
	}

	out, _, err = execute(t, "batch", "files", "batch_1", "-f", "json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "batch_1.zip") {
		t.Errorf("expected matched file in batch files report: %s", out)
	}
}

func TestOutputFile(t *testing.T) {
	useMemoryStores(t, seededBatch("batch_1", "Flor", models.StatusSegmented, ""))
	path := filepath.Join(t.TempDir(), "overview.csv")

	stdout, _, err := execute(t, "metrics", "overview", "-f", "csv", "-o", path)
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "" {
		t.Errorf("expected nothing on stdout, got %q", stdout)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "field,value") {
		t.Errorf("unexpected CSV file:\n%s", data)
	}
}

func TestInvalidConfiguration(t *testing.T) {
	useMemoryStores(t)

	_, _, err := execute(t, "metrics", "overview", "-f", "xml")
	if !errors.IsKind(err, errors.CodeInvalidConfig) {
		t.Errorf("expected invalid_config for bad format, got %v", err)
	}

	_, _, err = execute(t, "--profile", "nope", "metrics", "overview")
	if !errors.IsKind(err, errors.CodeInvalidConfig) {
		t.Errorf("expected invalid_config for unknown profile, got %v", err)
	}
}

func TestCLIErrorHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantText []string
	}{
		{
			name:     "not found",
			err:      errors.BatchNotFound("batch_9"),
			wantCode: 2,
			wantText: []string{"batch_9", "Not found help"},
		},
		{
			name:     "validation",
			err:      errors.ValidationError(errors.CodeInvalidStatus, "status", "DONE", nil),
			wantCode: 3,
			wantText: []string{"Context:", "status", "Validation error help"},
		},
		{
			name:     "configuration",
			err:      errors.ConfigurationError(errors.CodeMissingConfig, "batches.expected", nil, nil),
			wantCode: 4,
			wantText: []string{"batches.expected", "Suggestion:"},
		},
		{
			name:     "store",
			err:      errors.StoreUnavailable("roster", nil),
			wantCode: 6,
			wantText: []string{"Store error help"},
		},
		{
			name:     "generic",
			err:      os.ErrNotExist,
			wantCode: 2,
			wantText: []string{"File not found"},
		},
		{
			name:     "usage",
			err:      context.Canceled,
			wantCode: 1,
			wantText: []string{"segtracker --help"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := NewCLIErrorHandler()
			h.out = &buf

			if code := h.HandleError(tt.err); code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", code, tt.wantCode)
			}
			for _, want := range tt.wantText {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}

	if code := NewCLIErrorHandler().HandleError(nil); code != 0 {
		t.Errorf("expected 0 for nil error, got %d", code)
	}
}

func TestPatchFromFlags(t *testing.T) {
	fs := pflag.NewFlagSet("update", pflag.ContinueOnError)
	addBatchFieldFlags(fs)
	fs.Bool("unassign", false, "")

	if err := fs.Parse([]string{"--status", "FS", "--tasks", " a , ,b", "--mongo-uploaded=false"}); err != nil {
		t.Fatal(err)
	}
	patch, err := patchFromFlags(fs)
	if err != nil {
		t.Fatal(err)
	}
	if patch.Status == nil || *patch.Status != models.StatusInProgress {
		t.Errorf("expected status FS, got %v", patch.Status)
	}
	if strings.Join(patch.Tasks, "|") != "a|b" {
		t.Errorf("unexpected tasks %q", patch.Tasks)
	}
	if patch.MongoUploaded == nil || *patch.MongoUploaded {
		t.Error("expected explicit mongo_uploaded=false")
	}
	if patch.AssigneeSet || patch.Folder != nil {
		t.Errorf("unexpected fields set: %+v", patch)
	}
}
