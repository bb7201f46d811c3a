package dump

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"dbdump/internal/database"
)

// TimestampLayout is the YYYY-MM-DD_HH-mm prefix of backup file names
const TimestampLayout = "2006-01-02_15-04"

var fileNameReplacer = strings.NewReplacer("/", "_", `\`, "_", string(filepath.Separator), "_")

// BaseBackupPath returns <dir>/<timestamp>_backup_<identifier>__<database>.sql
func BaseBackupPath(dir string, conn *database.Connection, at time.Time) string {
	name := fmt.Sprintf("%s_backup_%s__%s.sql",
		at.Format(TimestampLayout),
		fileNameReplacer.Replace(conn.Identifier()),
		fileNameReplacer.Replace(conn.Database()))

	switch trimmed := strings.TrimRight(dir, "/"); {
	case dir == "":
		return "./" + name
	case trimmed == "":
		return "/" + name
	default:
		return trimmed + "/" + name
	}
}

// RelativeDirectory shows dir as ./<rel> when it lies inside workDir and
// returns it unchanged otherwise.
func RelativeDirectory(dir, workDir string) string {
	if dir == "" || workDir == "" || !filepath.IsAbs(dir) {
		return dir
	}
	rel, err := filepath.Rel(workDir, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return dir
	}
	if rel == "." {
		return "."
	}
	return "./" + filepath.ToSlash(rel)
}

// PlanAll builds a plan per connection, in order, all sharing one timestamp
func PlanAll(d *Dispatcher, conns []*database.Connection, dir string, at time.Time) []*Plan {
	plans := make([]*Plan, 0, len(conns))
	for _, conn := range conns {
		plans = append(plans, d.ConfigureBackupPath(conn, BaseBackupPath(dir, conn, at)))
	}
	return plans
}
