// Package signing implements the trust primitives of the update protocol:
// RSA detached signatures over SHA-256 digests, plus PEM keypair generation
// and loading. Signing and verification happen in-process; there are no
// shell-outs to external tools.
package signing
