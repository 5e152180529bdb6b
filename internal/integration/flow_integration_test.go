package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/otakit/courier/internal/config"
	"github.com/otakit/courier/internal/domain/release"
	"github.com/otakit/courier/internal/repository/record"
	"github.com/otakit/courier/internal/runtime"
	"github.com/otakit/courier/internal/service/agent"
	"github.com/otakit/courier/internal/service/publisher"
	"github.com/otakit/courier/internal/signing"
	"github.com/otakit/courier/internal/store"
)

// device bundles the per-device half of the flow: one record file, one fake
// runtime, one agent.
type device struct {
	agent   *agent.Agent
	runtime *runtime.Fake
	records *record.FileRepository
}

// newDevice provisions a device against the shared store and public key, the
// way a fresh edge box joins a fleet.
func newDevice(t *testing.T, st store.Store, cfg *config.Config) *device {
	t.Helper()

	key, err := signing.LoadPublicKey(cfg.PublicKeyFile)
	require.NoError(t, err)

	fake := runtime.NewFake()
	records := record.NewFileRepository(filepath.Join(t.TempDir(), "state.yaml"))

	return &device{
		agent:   agent.New(cfg, st, records, fake, key),
		runtime: fake,
		records: records,
	}
}

// TestUpdateFlow_PublishThenApply walks the whole protocol: a publisher signs
// and uploads two consecutive releases and a device picks each one up, then a
// tampered store is refused by both an already-updated device and a fresh one.
func TestUpdateFlow_PublishThenApply(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	cfg := &config.Config{
		StoreURL:       "file://" + filepath.Join(dir, "store"),
		Project:        "edge-fleet",
		PrivateKeyFile: filepath.Join(dir, "courier.key"),
		PublicKeyFile:  filepath.Join(dir, "courier.pub"),
		UnitName:       "courier-app",
		Timeout:        2 * time.Second,
	}

	key, err := signing.GenerateKeyPair(1024)
	require.NoError(t, err)
	require.NoError(t, signing.SaveKeyPair(key, cfg.PrivateKeyFile, cfg.PublicKeyFile))

	st, err := store.ForURI(cfg.StoreURL, cfg.Project)
	require.NoError(t, err)

	pub := publisher.New(st, key)
	dev := newDevice(t, st, cfg)

	// First release.
	firstInstant := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err = pub.Publish(ctx, []byte("release one"), firstInstant)
	require.NoError(t, err)

	result, err := dev.agent.ApplyUpdate(ctx)
	require.NoError(t, err)
	require.Equal(t, agent.OutcomeUpdated, result.Outcome)

	unit := dev.runtime.Unit(cfg.UnitName)
	require.NotNil(t, unit)
	require.True(t, unit.Running)

	// Second release supersedes the first on the next pass.
	secondInstant := firstInstant.Add(48 * time.Hour)

	_, err = pub.Publish(ctx, []byte("release two"), secondInstant)
	require.NoError(t, err)

	result, err = dev.agent.ApplyUpdate(ctx)
	require.NoError(t, err)
	require.Equal(t, agent.OutcomeUpdated, result.Outcome)
	require.True(t, result.Applied.Equal(secondInstant))

	rec, err := dev.records.Load(ctx)
	require.NoError(t, err)
	require.True(t, rec.AppliedAt.Equal(secondInstant))

	// Tamper with the published bundle signature in the store.
	sig, err := st.Fetch(ctx, release.BundleSigObject)
	require.NoError(t, err)

	sig[len(sig)/2] ^= 0x01
	require.NoError(t, st.Store(ctx, release.BundleSigObject, sig))

	// The updated device sees an unchanged manifest instant, so it never
	// re-downloads: the pass reduces to a self-heal no-op.
	result, err = dev.agent.ApplyUpdate(ctx)
	require.NoError(t, err)
	require.Equal(t, agent.OutcomeNoOp, result.Outcome)

	unit = dev.runtime.Unit(cfg.UnitName)
	require.NotNil(t, unit)
	require.True(t, unit.Running)
	require.Equal(t, rec.ImageRef, unit.ImageRef)

	// A freshly provisioned device must download everything, and the bad
	// bundle signature is refused before anything touches the runtime.
	fresh := newDevice(t, st, cfg)

	result, err = fresh.agent.ApplyUpdate(ctx)
	require.ErrorIs(t, err, agent.ErrTrust)
	require.Equal(t, agent.OutcomeRejected, result.Outcome)
	require.Equal(t, agent.ReasonBundleSignature, result.Reason)
	require.Nil(t, fresh.runtime.Unit(cfg.UnitName))

	_, err = fresh.records.Load(ctx)
	require.ErrorIs(t, err, record.ErrNotFound)

	// Re-publishing the same release with intact signatures repairs the
	// store; the fresh device now converges.
	_, err = pub.Publish(ctx, []byte("release two"), secondInstant)
	require.NoError(t, err)

	result, err = fresh.agent.ApplyUpdate(ctx)
	require.NoError(t, err)
	require.Equal(t, agent.OutcomeUpdated, result.Outcome)
	require.True(t, result.Applied.Equal(secondInstant))
}
