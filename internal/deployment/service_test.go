package deployment

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStartupOrder(t *testing.T) {
	assert.Equal(t, []string{"3", "1", "2"}, ParseStartupOrder("3:1:2"))
	assert.Equal(t, []string{"a", "b"}, ParseStartupOrder(" a : b "))
	assert.Nil(t, ParseStartupOrder(""))
	assert.Nil(t, ParseStartupOrder("::"))
}

func TestServiceStartAndStop(t *testing.T) {
	h := newHarness(t)
	h.addAppArchive(t, "alpha.zip", "")
	h.addAppArchive(t, "beta.zip", "")

	require.NoError(t, h.service.Start())
	require.Equal(t, 1, h.listener.count("deploy_success:alpha"))
	require.Equal(t, 1, h.listener.count("deploy_success:beta"))

	h.service.Stop()
	assert.Equal(t, 1, h.listener.count("undeploy_success:alpha"))
	assert.Equal(t, 1, h.listener.count("undeploy_success:beta"))
	assert.Empty(t, h.service.Applications())
}

func TestServiceStartFailsOnUnreadableAppsDir(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.RemoveAll(h.appsDir))

	err := h.service.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apps directory unreadable")
}

func TestServiceDeployPlacesExternalArchive(t *testing.T) {
	h := newHarness(t)
	staging := t.TempDir()
	source := filepath.Join(staging, "imported.zip")
	writeArchive(t, source, map[string]string{"app.toml": ""})

	require.NoError(t, h.service.Deploy(source))

	require.Equal(t, 1, h.listener.count("deploy_success:imported"))
	assert.FileExists(t, filepath.Join(h.appsDir, "imported.zip"))
	app, ok := h.service.FindApplication("imported")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(h.appsDir, "imported.zip"), app.Location)
}

func TestServiceDeployIsIdempotent(t *testing.T) {
	h := newHarness(t)
	location := h.addAppArchive(t, "steady.zip", "")

	require.NoError(t, h.service.Deploy(location))
	require.NoError(t, h.service.Deploy(location))

	assert.Equal(t, 1, h.listener.count("deploy_success:steady"))
	assert.Equal(t, 1, h.builder.buildCount("steady"))
}

func TestServiceDeployRedeploysChangedArchive(t *testing.T) {
	h := newHarness(t)
	location := h.addAppArchive(t, "rolling.zip", "")
	require.NoError(t, h.service.Deploy(location))

	touchFuture(t, location, time.Hour)
	require.NoError(t, h.service.Deploy(location))

	assert.Equal(t, 1, h.listener.count("undeploy_success:rolling"))
	assert.Equal(t, 2, h.listener.count("deploy_success:rolling"))
	assert.Len(t, h.service.Applications(), 1)
}

func TestServiceDeployOlderTimestampIsNoop(t *testing.T) {
	h := newHarness(t)
	location := h.addAppArchive(t, "steady.zip", "")
	require.NoError(t, h.service.Deploy(location))
	require.Equal(t, 1, h.listener.count("deploy_success:steady"))

	// Re-deploying the live location with an older timestamp must not
	// be mistaken for a name conflict.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(location, past, past))
	require.NoError(t, h.service.Deploy(location))

	assert.Equal(t, 1, h.builder.buildCount("steady"))
	assert.Equal(t, 0, h.listener.count("deploy_failure:steady"))
	assert.Empty(t, h.service.Zombies())
	assert.Len(t, h.service.Applications(), 1)
}

func TestServiceDeployRejectsDuplicateName(t *testing.T) {
	h := newHarness(t)
	h.addExplodedApp(t, "dup", "")
	h.cycle()
	require.Equal(t, 1, h.listener.count("deploy_success:dup"))

	archive := h.addAppArchive(t, "dup.zip", "")
	err := h.service.Deploy(archive)

	var derr *DeploymentError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindDuplicateName, derr.Kind)
	assert.Len(t, h.service.Applications(), 1)

	// The rejection is a deployment failure like any other and is
	// reported to listeners.
	assert.Equal(t, 1, h.listener.count("deploy_failure:dup"))
}

func TestServiceDeployRejectsNonArchiveFile(t *testing.T) {
	h := newHarness(t)
	notes := filepath.Join(h.appsDir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("hello"), 0o644))

	err := h.service.Deploy(notes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a .zip archive")
}

func TestServiceDeployRejectsExplodedDirOutsideRoot(t *testing.T) {
	h := newHarness(t)
	outside := t.TempDir()

	err := h.service.Deploy(outside)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the apps directory")
}

func TestServiceUndeployUnknownApp(t *testing.T) {
	h := newHarness(t)
	err := h.service.Undeploy("ghost")
	assert.ErrorIs(t, err, ErrAppNotFound)
}

func TestServiceUndeployedArtifactIsNotResurrected(t *testing.T) {
	h := newHarness(t)
	location := h.addAppArchive(t, "parked.zip", "")
	h.cycle()
	require.Equal(t, 1, h.listener.count("deploy_success:parked"))

	require.NoError(t, h.service.Undeploy("parked"))
	assert.FileExists(t, location)

	h.cycle()
	h.cycle()
	assert.Equal(t, 1, h.listener.count("deploy_success:parked"))
	assert.Empty(t, h.service.Applications())

	// A refreshed timestamp is the operator's cue to bring it back.
	touchFuture(t, location, time.Hour)
	h.cycle()
	assert.Equal(t, 2, h.listener.count("deploy_success:parked"))
}
