package db

import (
	"strconv"

	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// sqliteDialect writes uint64 values as their int64 bit pattern. SQLite
// integers are signed 64-bit, so a plain literal above MaxInt64 would be
// stored as a REAL. bun scans the int64 back into uint64 unchanged.
// Amounts are never compared or summed in SQL, so the signed order is unused.
type sqliteDialect struct {
	*sqlitedialect.Dialect
}

// SQLiteDialect returns the dialect every sqlite ledger database must use.
func SQLiteDialect() schema.Dialect {
	return sqliteDialect{Dialect: sqlitedialect.New()}
}

func (sqliteDialect) AppendUint64(b []byte, n uint64) []byte {
	return strconv.AppendInt(b, int64(n), 10)
}
