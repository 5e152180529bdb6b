package publisher

import (
	"context"
	"crypto/rsa"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/otakit/courier/internal/domain/release"
	"github.com/otakit/courier/internal/logger"
	"github.com/otakit/courier/internal/signing"
	"github.com/otakit/courier/internal/store"
)

// Publisher packages, signs and uploads releases for one project.
type Publisher struct {
	// store is the remote artifact store for the project.
	store store.Store
	// key is the private half of the project's signing keypair.
	key *rsa.PrivateKey
}

// New creates a publisher writing to the given store with the given key.
func New(st store.Store, key *rsa.PrivateKey) *Publisher {
	return &Publisher{
		store: st,
		key:   key,
	}
}

// Publish signs the bundle and a manifest for the given instant and uploads
// all four release objects, fully replacing whatever release was previously
// published for the project.
//
// Upload order is bundle, bundle signature, manifest signature, manifest.
// The manifest goes last because it is the divergence trigger: an agent that
// observes the new manifest finds the bundle and both signatures already in
// place. Any upload failure aborts the publish; objects already replaced
// stay replaced, which agents tolerate through verification.
func (p *Publisher) Publish(ctx context.Context, bundle []byte, at time.Time) (*release.Manifest, error) {
	manifest := release.NewManifest(at)
	manifestBytes := manifest.Encode()

	logger.InfoKV(ctx, "Publishing release",
		"instant", manifest.LastBuild.Format(time.RFC3339),
		"bundle_size", len(bundle),
		"bundle_digest", hex.EncodeToString(signing.Digest(bundle)),
		"store", p.store.Name())

	bundleSig, err := signing.Sign(p.key, bundle)
	if err != nil {
		return nil, fmt.Errorf("sign bundle: %w", err)
	}

	manifestSig, err := signing.Sign(p.key, manifestBytes)
	if err != nil {
		return nil, fmt.Errorf("sign manifest: %w", err)
	}

	uploads := []struct {
		object string
		data   []byte
	}{
		{release.BundleObject, bundle},
		{release.BundleSigObject, bundleSig},
		{release.ManifestSigObject, manifestSig},
		{release.ManifestObject, manifestBytes},
	}

	for _, up := range uploads {
		if err = p.store.Store(ctx, up.object, up.data); err != nil {
			return nil, fmt.Errorf("upload %s: %w", up.object, err)
		}

		logger.InfoKV(ctx, "Uploaded object", "object", up.object, "size", len(up.data))
	}

	return manifest, nil
}
