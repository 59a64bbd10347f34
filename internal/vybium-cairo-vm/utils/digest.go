package utils

import (
	"crypto/sha256"
	"fmt"
	"hash"

	"golang.org/x/crypto/sha3"

	"github.com/vybium/vybium-cairo-vm/internal/vybium-cairo-vm/core"
)

func newHasher(hashFunc string) (hash.Hash, error) {
	switch hashFunc {
	case HashSHA3, "":
		return sha3.New256(), nil
	case HashSHA256:
		return sha256.New(), nil
	}
	return nil, fmt.Errorf("unsupported hash function '%s'", hashFunc)
}

// Digest hashes data with the named hash function, sha3 when empty
func Digest(hashFunc string, data []byte) ([]byte, error) {
	h, err := newHasher(hashFunc)
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}

// ProgramDigest hashes the program words, each as 32 big-endian bytes, followed by the entrypoint
func ProgramDigest(hashFunc string, words []core.Felt, entrypoint uint32) ([]byte, error) {
	h, err := newHasher(hashFunc)
	if err != nil {
		return nil, err
	}
	for _, w := range words {
		b := w.Bytes()
		h.Write(b[:])
	}
	h.Write([]byte{byte(entrypoint >> 24), byte(entrypoint >> 16), byte(entrypoint >> 8), byte(entrypoint)})
	return h.Sum(nil), nil
}
