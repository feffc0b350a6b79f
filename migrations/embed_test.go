package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryUpHasDown(t *testing.T) {
	ups, err := fs.Glob(FS, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(FS, down)
		assert.NoError(t, err, "missing %s", down)
	}
}

func TestSchemaHasSlotAndTokenIndexes(t *testing.T) {
	raw, err := fs.ReadFile(FS, "0001_init.up.sql")
	require.NoError(t, err)
	schema := string(raw)

	// names must match the constraint mapping in the appointment repository
	assert.Contains(t, schema, "appointments_active_slot_idx")
	assert.Contains(t, schema, "WHERE status <> 'Cancelled'")
	assert.Contains(t, schema, "appointments_doctor_token_idx")
}
