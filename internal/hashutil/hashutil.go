package hashutil

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
)

// DefaultAlgo keeps slot names compatible with caches written by earlier clients.
const DefaultAlgo = "md5"

type HashFactory func() hash.Hash

var registry = map[string]HashFactory{
	"md5":    md5.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

func IsSupported(name string) bool {
	_, ok := registry[name]
	return ok
}

// Deriver maps logical keys to fixed-width lowercase hex fingerprints.
type Deriver struct {
	factory HashFactory
}

func NewDeriver(algo string) (*Deriver, error) {
	if algo == "" {
		algo = DefaultAlgo
	}
	factory, ok := registry[algo]
	if !ok {
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
	return &Deriver{factory: factory}, nil
}

// Fingerprint is a pure function of key: no salt, no state.
func (d *Deriver) Fingerprint(key string) string {
	h := d.factory()
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}
