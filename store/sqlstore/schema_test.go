package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	query := `UPDATE policies SET status = ?, updated_at = ? WHERE id = ?`

	assert.Equal(t, query, SQLite.rebind(query))
	assert.Equal(t, `UPDATE policies SET status = $1, updated_at = $2 WHERE id = $3`, Postgres.rebind(query))
}

func TestSchema_SerialColumnPerDialect(t *testing.T) {
	assert.Contains(t, SQLite.schema()[0], "AUTOINCREMENT")
	assert.Contains(t, Postgres.schema()[0], "BIGSERIAL")
}
