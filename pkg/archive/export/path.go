package export

import (
	"fmt"
	"strings"
	"time"
)

// Week returns the week number of the year with Monday as the first day of
// the week. Days before the first Monday are in week 0.
func Week(t time.Time) int {
	yday := t.YearDay() - 1
	weekday := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return (yday + 7 - weekday) / 7
}

// RelativePath returns the directory, relative to the archive root, that a
// record created at created and living under parentPath is exported to:
// "{YYYY}/{WW}{parentPath}/". The result depends only on its arguments, so
// exporting the same record twice targets the same directory.
func RelativePath(created time.Time, parentPath string) string {
	parentPath = strings.TrimRight(parentPath, "/")
	if parentPath != "" && !strings.HasPrefix(parentPath, "/") {
		parentPath = "/" + parentPath
	}
	return fmt.Sprintf("%04d/%02d%s/", created.Year(), Week(created), parentPath)
}
