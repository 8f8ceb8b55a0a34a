package creds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticReturnsFixedValues(t *testing.T) {
	c := NewStatic("alice", "secret", 3)
	require.Equal(t, "alice", c.Username())
	require.Equal(t, "secret", c.Password())
	require.Equal(t, 3, c.MaxRetries())
}

func TestEnvReadsPrefixedVariables(t *testing.T) {
	t.Setenv("DSCLIENT_USERNAME", "bob")
	t.Setenv("DSCLIENT_PASSWORD", "hunter2")

	c, err := NewEnv("DSCLIENT_", 2)
	require.NoError(t, err)
	require.Equal(t, "bob", c.Username())
	require.Equal(t, "hunter2", c.Password())
	require.Equal(t, 2, c.MaxRetries())
}

func TestEnvMissingVariablesResolveToEmptyString(t *testing.T) {
	os.Unsetenv("DSCLIENT_USERNAME")
	os.Unsetenv("DSCLIENT_PASSWORD")

	c, err := NewEnv("DSCLIENT_", 2)
	require.NoError(t, err)
	require.Equal(t, "", c.Username())
	require.Equal(t, "", c.Password())
}

func TestFileLoadsYAMLCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "creds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("username: carol\npassword: swordfish\nmax_retries: 5\n"), 0644))

	c, err := NewFileCredentials(path)
	require.NoError(t, err)
	require.Equal(t, "carol", c.Username())
	require.Equal(t, "swordfish", c.Password())
	require.Equal(t, 5, c.MaxRetries())
}

func TestFileDefaultsMaxRetriesWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "creds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("username: dave\npassword: pw\n"), 0644))

	c, err := NewFileCredentials(path)
	require.NoError(t, err)
	require.Equal(t, 2, c.MaxRetries())
}

func TestFileMissingPathErrors(t *testing.T) {
	_, err := NewFileCredentials("/nonexistent/creds.yaml")
	require.Error(t, err)
}
