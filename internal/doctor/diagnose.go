package doctor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/a-marczewski/deepmemo/internal/config"
	"github.com/a-marczewski/deepmemo/internal/storage"
)

// Diagnostics is the outcome of a full diagnostic run.
type Diagnostics struct {
	Checks []CheckResult `json:"checks"`
	Issues []string      `json:"issues"`
	Status string        `json:"status"`
}

// CheckResult represents the result of a single check.
type CheckResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"` // "pass", "fail", "warn"
	Message  string `json:"message"`
	Severity string `json:"severity"` // "info", "warning", "error"
}

// Runner runs diagnostic checks against the local installation.
type Runner struct {
	config *config.Config
	db     *storage.DB
}

// NewRunner creates a diagnostic runner.
func NewRunner(cfg *config.Config, db *storage.DB) *Runner {
	return &Runner{config: cfg, db: db}
}

// RunAll runs every diagnostic check and aggregates the failures.
func (d *Runner) RunAll() *Diagnostics {
	var results []CheckResult

	results = append(results, d.checkDatabase()...)
	results = append(results, d.checkDataDirectory()...)
	results = append(results, d.checkConfiguration()...)

	var issues []string
	for _, result := range results {
		if result.Status == "fail" {
			issues = append(issues, result.Message)
		}
	}

	status := "healthy"
	if len(issues) > 0 {
		status = "issues_found"
	}

	return &Diagnostics{Checks: results, Issues: issues, Status: status}
}

func (d *Runner) checkDatabase() []CheckResult {
	var results []CheckResult
	conn := d.db.GetConnection()

	if err := conn.Ping(); err != nil {
		results = append(results, CheckResult{
			Name:     "database_connectivity",
			Status:   "fail",
			Message:  fmt.Sprintf("Cannot connect to database: %v", err),
			Severity: "error",
		})
		return results
	}
	results = append(results, CheckResult{
		Name:     "database_connectivity",
		Status:   "pass",
		Message:  "Database connection successful",
		Severity: "info",
	})

	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		results = append(results, CheckResult{
			Name:     "schema_version",
			Status:   "fail",
			Message:  fmt.Sprintf("Cannot read schema version: %v", err),
			Severity: "error",
		})
	} else if version != storage.SchemaVersion {
		results = append(results, CheckResult{
			Name:     "schema_version",
			Status:   "warn",
			Message:  fmt.Sprintf("Schema version %d does not match expected %d", version, storage.SchemaVersion),
			Severity: "warning",
		})
	} else {
		results = append(results, CheckResult{
			Name:     "schema_version",
			Status:   "pass",
			Message:  fmt.Sprintf("Schema at version %d", version),
			Severity: "info",
		})
	}

	var integrity string
	if err := conn.QueryRow("PRAGMA integrity_check").Scan(&integrity); err != nil || integrity != "ok" {
		results = append(results, CheckResult{
			Name:     "database_integrity",
			Status:   "fail",
			Message:  fmt.Sprintf("Database integrity check failed: %v (%s)", err, integrity),
			Severity: "error",
		})
	} else {
		results = append(results, CheckResult{
			Name:     "database_integrity",
			Status:   "pass",
			Message:  "Database integrity check passed",
			Severity: "info",
		})
	}

	var entries int
	if err := conn.QueryRow("SELECT COUNT(*) FROM entries WHERE is_deleted = 0").Scan(&entries); err != nil {
		results = append(results, CheckResult{
			Name:     "entries_table",
			Status:   "fail",
			Message:  fmt.Sprintf("Cannot query entries table: %v", err),
			Severity: "error",
		})
	} else {
		results = append(results, CheckResult{
			Name:     "entries_table",
			Status:   "pass",
			Message:  fmt.Sprintf("Entries table readable, %d live entries", entries),
			Severity: "info",
		})
	}

	return results
}

func (d *Runner) checkDataDirectory() []CheckResult {
	var results []CheckResult
	dir := d.config.DeepmemoDir

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		results = append(results, CheckResult{
			Name:     "data_directory_exists",
			Status:   "fail",
			Message:  fmt.Sprintf("Data directory does not exist: %s", dir),
			Severity: "error",
		})
		return results
	} else if err != nil {
		results = append(results, CheckResult{
			Name:     "data_directory_access",
			Status:   "fail",
			Message:  fmt.Sprintf("Cannot access data directory: %v", err),
			Severity: "error",
		})
		return results
	}

	if err := testDirectoryWritable(dir); err != nil {
		results = append(results, CheckResult{
			Name:     "data_directory_permissions",
			Status:   "fail",
			Message:  fmt.Sprintf("Insufficient permissions for data directory: %v", err),
			Severity: "error",
		})
	} else {
		results = append(results, CheckResult{
			Name:     "data_directory_permissions",
			Status:   "pass",
			Message:  "Data directory is writable",
			Severity: "info",
		})
	}

	logsDir := filepath.Join(dir, "logs")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		results = append(results, CheckResult{
			Name:     "logs_directory",
			Status:   "warn",
			Message:  fmt.Sprintf("Logs directory does not exist: %s", logsDir),
			Severity: "warning",
		})
	} else {
		results = append(results, CheckResult{
			Name:     "logs_directory",
			Status:   "pass",
			Message:  "Logs directory present",
			Severity: "info",
		})
	}

	if _, err := os.Stat(d.config.DBPath); os.IsNotExist(err) {
		results = append(results, CheckResult{
			Name:     "database_file",
			Status:   "warn",
			Message:  fmt.Sprintf("Database file does not exist yet: %s", d.config.DBPath),
			Severity: "warning",
		})
	} else {
		results = append(results, CheckResult{
			Name:     "database_file",
			Status:   "pass",
			Message:  "Database file is accessible",
			Severity: "info",
		})
	}

	return results
}

func testDirectoryWritable(dir string) error {
	testFile := filepath.Join(dir, ".permission_test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return err
	}
	os.Remove(testFile)
	return nil
}

func (d *Runner) checkConfiguration() []CheckResult {
	var results []CheckResult

	if err := d.config.Validate(); err != nil {
		results = append(results, CheckResult{
			Name:     "configuration_validation",
			Status:   "fail",
			Message:  fmt.Sprintf("Configuration validation failed: %v", err),
			Severity: "error",
		})
	} else {
		results = append(results, CheckResult{
			Name:     "configuration_validation",
			Status:   "pass",
			Message:  "Configuration is valid",
			Severity: "info",
		})
	}

	return results
}

// PrintReport prints a formatted diagnostic report.
func (d *Diagnostics) PrintReport() {
	fmt.Printf("=== deepmemo Diagnostic Report ===\n")
	fmt.Printf("Status: %s\n\n", d.Status)

	if len(d.Issues) > 0 {
		fmt.Printf("Issues Found:\n")
		for i, issue := range d.Issues {
			fmt.Printf("  %d. %s\n", i+1, issue)
		}
		fmt.Println()
	}

	fmt.Printf("Detailed Checks:\n")
	for _, check := range d.Checks {
		statusSymbol := "✓"
		if check.Status == "fail" {
			statusSymbol = "✗"
		} else if check.Status == "warn" {
			statusSymbol = "!"
		}
		fmt.Printf("  %s %s: %s\n", statusSymbol, check.Name, check.Message)
	}
}
