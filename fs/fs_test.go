package appfs

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_UnboundedText(t *testing.T) {
	files, err := fs.Glob(FS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		data, err := FS.ReadFile(name)
		require.NoError(t, err)
		// names and codes come from uploaded sheets with no length limit
		assert.NotContains(t, strings.ToUpper(string(data)), "VARCHAR", name)
	}
}
