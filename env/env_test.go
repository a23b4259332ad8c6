package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvDefaults(t *testing.T) {
	t.Setenv("FOLIO_TEST_INT", "")
	assert.Equal(t, "d", Env("FOLIO_TEST_UNSET", "d"))
	assert.Equal(t, 7, EnvInt("FOLIO_TEST_INT", 7))
	assert.True(t, EnvBool("FOLIO_TEST_UNSET", true))
	assert.Equal(t, time.Minute, EnvDuration("FOLIO_TEST_UNSET", time.Minute))
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("FOLIO_TEST_DUR", "15m")
	assert.Equal(t, 15*time.Minute, EnvDuration("FOLIO_TEST_DUR", 0))

	t.Setenv("FOLIO_TEST_DUR", "30")
	assert.Equal(t, 30*time.Second, EnvDuration("FOLIO_TEST_DUR", 0))
}

func TestEnvList(t *testing.T) {
	def := []string{"a"}
	assert.Equal(t, def, EnvList("FOLIO_TEST_UNSET_LIST", def))

	t.Setenv("FOLIO_TEST_LIST", " x, ,y ")
	assert.Equal(t, []string{"x", "y"}, EnvList("FOLIO_TEST_LIST", def))

	t.Setenv("FOLIO_TEST_LIST", "")
	assert.Nil(t, EnvList("FOLIO_TEST_LIST", def))
}

func TestLoadKeepsExistingVariables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FOLIO_TEST_FILE=from-file\nFOLIO_TEST_SET=from-file\n"), 0o600))

	t.Setenv("FOLIO_TEST_SET", "from-env")
	t.Setenv("FOLIO_TEST_FILE", "")
	require.NoError(t, os.Unsetenv("FOLIO_TEST_FILE"))

	Load(path, filepath.Join(dir, "missing.env"))

	assert.Equal(t, "from-file", os.Getenv("FOLIO_TEST_FILE"))
	assert.Equal(t, "from-env", os.Getenv("FOLIO_TEST_SET"))
	require.NoError(t, os.Unsetenv("FOLIO_TEST_FILE"))
}
