package util

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithinDir(t *testing.T) {
	root := t.TempDir()

	got, err := WithinDir(root, "")
	require.NoError(t, err)
	require.Equal(t, root, got)

	got, err = WithinDir(root, "manuals/v2")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "manuals", "v2"), got)

	got, err = WithinDir(root, filepath.Join(root, "manuals"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "manuals"), got)

	for _, bad := range []string{"..", "../etc", "manuals/../../etc", "/etc", filepath.Dir(root)} {
		_, err := WithinDir(root, bad)
		require.ErrorIs(t, err, ErrConfiguration, bad)
	}
}

func TestSafeJoinKeepsBaseName(t *testing.T) {
	require.Equal(t, filepath.Join("docs", "passwd"), SafeJoin("docs", "../../etc/passwd"))
}
