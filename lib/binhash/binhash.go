// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binhash

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/zeebo/blake3"
)

// Digest is a BLAKE3-256 sum.
type Digest [32]byte

// String renders the digest as "blake3:" and 64 lowercase hex digits.
func (d Digest) String() string {
	return "blake3:" + hex.EncodeToString(d[:])
}

// Identity names one bootstrap file by content.
type Identity struct {
	Path   string
	Size   int64
	Digest Digest
}

// LogValue groups the identity under a single log attribute.
func (i Identity) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", i.Path),
		slog.Int64("size", i.Size),
		slog.String("digest", i.Digest.String()),
	)
}

// Identify hashes the file at path in constant memory.
func Identify(path string) (Identity, error) {
	file, err := os.Open(path)
	if err != nil {
		return Identity{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return Identity{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	identity := Identity{Path: path, Size: size}
	copy(identity.Digest[:], hasher.Sum(nil))
	return identity, nil
}
