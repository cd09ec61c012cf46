package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	appconfig "github.com/agilenature/filelifecycle/internal/app/config"
	"github.com/agilenature/filelifecycle/internal/infrastructure/di"
	"github.com/agilenature/filelifecycle/internal/infrastructure/remote"
)

func newTestContainer(t *testing.T) *di.Container {
	t.Helper()
	dbPath := t.TempDir() + "/fle.db"

	cfg := appconfig.NewAppConfig(
		t.TempDir(), dbPath,
		"test-bucket", "us-east-1", "", "raw/", "store/",
		1000, // remoteRateLimitRPS, generous so tests never stall on the limiter
		4,
		10, 1, 2, // pollIntervalMS, pollSoftDeadlineS, pollHardDeadlineS
		30,
		"quarterly earnings", "",
		"info",
		"test", "",
	)

	container, err := di.NewContainer(cfg, nil, remote.NewFakeSDK())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })
	return container
}

func insertUntracked(t *testing.T, c *di.Container, path string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.FS.WriteFile(path, []byte("content of "+path), 0o644))
	require.NoError(t, c.Files.Upsert(ctx, path, "hash-"+path))
}

func TestUploadCmd_IndexesUntrackedFile(t *testing.T) {
	c := newTestContainer(t)
	insertUntracked(t, c, "/docs/report.txt")

	cmd := newUploadCmd(c)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	rec, err := c.Files.Get(context.Background(), "/docs/report.txt")
	require.NoError(t, err)
	require.Equal(t, "INDEXED", rec.State)
}

func TestRecoverCmd_NoIntentsIsNoOp(t *testing.T) {
	c := newTestContainer(t)

	cmd := newRecoverCmd(c)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
}

func TestRetryFailedCmd_MovesFailedToUntracked(t *testing.T) {
	c := newTestContainer(t)
	ctx := context.Background()
	path := "/docs/bad.txt"
	require.NoError(t, c.Files.Upsert(ctx, path, "hash-"+path))
	require.NoError(t, c.Transitions.StartUpload(ctx, path, 0, "UNTRACKED"))
	require.NoError(t, c.Transitions.FailUpload(ctx, path, 1, "UPLOADING", "boom", "RemoteFatal"))

	cmd := newRetryFailedCmd(c)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	rec, err := c.Files.Get(ctx, path)
	require.NoError(t, err)
	require.Equal(t, "UNTRACKED", rec.State)
}

func TestMigrateCmd_CheckOnlyReportsVersion(t *testing.T) {
	c := newTestContainer(t)

	cmd := newMigrateCmd(c)
	cmd.SetArgs([]string{"--check"})
	require.NoError(t, cmd.Execute())
}

func TestVersionCmd_Runs(t *testing.T) {
	cmd := newVersionCmd()
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
}

func TestNewRoot_HasAllSubcommands(t *testing.T) {
	c := newTestContainer(t)
	root := NewRoot(c)

	want := []string{"upload", "recover", "retry-failed", "verify-stability", "migrate", "version"}
	for _, name := range want {
		found, _, err := root.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, found.Name())
	}
}
