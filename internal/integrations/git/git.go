// Package git reads change information from a local git checkout.
// It treats the repository as a read-only oracle: diff and log output
// between the PR's base reference and HEAD.
package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// ChangeStatus classifies a changed file.
type ChangeStatus string

const (
	StatusAdded    ChangeStatus = "A"
	StatusCopied   ChangeStatus = "C"
	StatusDeleted  ChangeStatus = "D"
	StatusModified ChangeStatus = "M"
	StatusRenamed  ChangeStatus = "R"
	StatusUnmerged ChangeStatus = "U"
)

// ChangeRecord is one entry of a name-status diff.
type ChangeRecord struct {
	Status ChangeStatus
	Path   string
}

// Deleted reports whether the record describes a removed file.
func (r ChangeRecord) Deleted() bool {
	return r.Status == StatusDeleted
}

// Runner executes git commands in a working directory.
type Runner struct {
	dir string
}

// NewRunner creates a Runner. An empty dir means the current directory.
func NewRunner(dir string) *Runner {
	return &Runner{dir: dir}
}

// Dir returns the runner's working directory.
func (r *Runner) Dir() string {
	return r.dir
}

// DiffNameStatus lists files changed between origin/<base> and HEAD.
func (r *Runner) DiffNameStatus(base string) ([]ChangeRecord, error) {
	out, err := r.run("diff", "--name-status", fmt.Sprintf("origin/%s...HEAD", base))
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}
	return ParseNameStatus(out), nil
}

// CommitSubjects lists commit subject lines between origin/<base> and HEAD.
func (r *Runner) CommitSubjects(base string) ([]string, error) {
	out, err := r.run("log", fmt.Sprintf("origin/%s..HEAD", base), "--pretty=format:%s")
	if err != nil {
		return nil, fmt.Errorf("git log failed: %w", err)
	}
	return ParseSubjects(out), nil
}

func (r *Runner) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ParseNameStatus parses `git diff --name-status` output. Rename and copy
// entries carry two paths; the record keeps the new one, since that is the
// file that survives the change.
func ParseNameStatus(out string) []ChangeRecord {
	var records []ChangeRecord
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		status := parseStatus(fields[0])
		path := fields[1]
		if (status == StatusRenamed || status == StatusCopied) && len(fields) > 2 {
			path = fields[2]
		}
		records = append(records, ChangeRecord{Status: status, Path: path})
	}
	return records
}

// ParseSubjects splits log output into non-empty subject lines.
func ParseSubjects(out string) []string {
	var subjects []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			subjects = append(subjects, line)
		}
	}
	return subjects
}

// parseStatus maps a raw status field to a ChangeStatus. Rename and copy
// statuses carry a similarity score ("R100"); only the letter matters.
func parseStatus(raw string) ChangeStatus {
	if raw == "" {
		return ChangeStatus("")
	}
	switch raw[0] {
	case 'A':
		return StatusAdded
	case 'C':
		return StatusCopied
	case 'D':
		return StatusDeleted
	case 'M':
		return StatusModified
	case 'R':
		return StatusRenamed
	case 'U':
		return StatusUnmerged
	default:
		return ChangeStatus(raw)
	}
}
