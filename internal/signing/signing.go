package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
)

// DefaultKeyBits is the RSA modulus size used for generated keypairs.
const DefaultKeyBits = 2048

// ErrSignatureMismatch is returned when a signature does not verify against
// the signed content. Callers treat it as a trust failure, never retried
// against the same content.
var ErrSignatureMismatch = errors.New("signature mismatch")

// Digest returns the SHA-256 digest of the given content.
func Digest(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// Sign produces a detached PKCS#1 v1.5 signature over the SHA-256 digest of
// the content. The signature is verifiable with only the public key, the
// content and the signature bytes.
func Sign(key *rsa.PrivateKey, data []byte) ([]byte, error) {
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, Digest(data))
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}

	return sig, nil
}

// Verify checks a detached signature against the content using the public
// key. Any mismatch, including a tampered signature or substituted content,
// yields ErrSignatureMismatch.
func Verify(key *rsa.PublicKey, data, sig []byte) error {
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, Digest(data), sig); err != nil {
		return ErrSignatureMismatch
	}

	return nil
}
