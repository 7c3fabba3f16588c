package metadata

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// connString builds a modernc.org/sqlite connection string with the
// pragmas the store needs: busy_timeout (avoids "database is locked"
// under the concurrent writers spec §5 describes), foreign_keys, and
// time_format so driver-level scans into time.Time work without manual
// parsing.
//
// Grounded on steveyegge-beads/internal/storage/connstring.go (busy
// timeout env override, pragma construction) and
// jra3-linear-fuse/internal/db/store.go's "file:"+escapedPath+
// "?_time_format=sqlite" DSN shape.
func connString(path string) string {
	busy := 30 * time.Second
	if v := strings.TrimSpace(os.Getenv("NOTEFORGE_LOCK_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			busy = d
		}
	}
	busyMs := busy.Milliseconds()
	escaped := strings.ReplaceAll(path, " ", "%20")
	return fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)&_time_format=sqlite",
		escaped, busyMs,
	)
}
