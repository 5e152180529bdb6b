package signing

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// privateKeyPermissions keeps the private half readable by the publisher only.
	privateKeyPermissions = 0o600
	// publicKeyPermissions allows the public half to be copied around freely.
	publicKeyPermissions = 0o644
)

var (
	// errNoPEMBlock is returned when a key file contains no PEM data.
	errNoPEMBlock = errors.New("no PEM block found")
	// errNotRSAKey is returned when a parsed key is not an RSA key.
	errNotRSAKey = errors.New("not an RSA key")
)

// GenerateKeyPair creates a fresh RSA keypair of the given modulus size.
// Zero bits selects DefaultKeyBits.
func GenerateKeyPair(bits int) (*rsa.PrivateKey, error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate RSA key: %w", err)
	}

	return key, nil
}

// SaveKeyPair writes the private key and its public half as PEM files.
// The private key is PKCS#8, the public key PKIX.
func SaveKeyPair(key *rsa.PrivateKey, privatePath, publicPath string) error {
	privateDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}

	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateDER})
	if err = os.WriteFile(filepath.Clean(privatePath), privatePEM, privateKeyPermissions); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}

	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return fmt.Errorf("marshal public key: %w", err)
	}

	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})
	if err = os.WriteFile(filepath.Clean(publicPath), publicPEM, publicKeyPermissions); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	return nil
}

// LoadPrivateKey reads an RSA private key from a PEM file.
// PKCS#8 is tried first with a PKCS#1 fallback, so keys produced by either
// openssl genpkey or openssl genrsa load the same way.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	block, err := readPEMBlock(path)
	if err != nil {
		return nil, err
	}

	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%s: %w", path, errNotRSAKey)
		}

		return key, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}

	return key, nil
}

// LoadPublicKey reads an RSA public key from a PEM file.
// PKIX is tried first with a PKCS#1 fallback.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	block, err := readPEMBlock(path)
	if err != nil {
		return nil, err
	}

	if parsed, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%s: %w", path, errNotRSAKey)
		}

		return key, nil
	}

	key, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key %s: %w", path, err)
	}

	return key, nil
}

// readPEMBlock reads a file and decodes its first PEM block.
func readPEMBlock(path string) (*pem.Block, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	block, _ := pem.Decode(contents)
	if block == nil {
		return nil, fmt.Errorf("%s: %w", path, errNoPEMBlock)
	}

	return block, nil
}
