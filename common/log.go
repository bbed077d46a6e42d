package common

import (
	"database/sql"

	"github.com/apex/log"
)

// LogResult logs the outcome of a write. When expectOne is set, a write that
// touched anything other than one row is reported as a warning.
func LogResult(msgPrefix string, r sql.Result, e error, expectOne bool) {
	if e != nil {
		log.Errorf("%s: query failed: %v", msgPrefix, e)
		return
	}
	rows, err := r.RowsAffected()
	if err != nil {
		log.Errorf("%s: failed to get status of db op: %v", msgPrefix, err)
		return
	}
	if expectOne && rows != 1 {
		log.Warnf("%s: Expected to affect 1 row, affected %d", msgPrefix, rows)
	}
}
