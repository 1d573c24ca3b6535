package cache_key

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/everyinstrument/everyinstrument-be/src/shared/lib/cerr"
	stementity "github.com/everyinstrument/everyinstrument-be/src/shared/stem/entity"
)

// Derive computes the cache key for a (file bytes, options) pair. The key
// doubles as a content-addressed identifier across runs, so a cryptographic
// digest is used rather than a fast hash. The filename deliberately does
// not participate.
func Derive(fileBytes []byte, options stementity.Options) (string, error) {
	canonicalOptions, err := options.CanonicalJSON()
	if err != nil {
		return "", cerr.Wrap(err).Error("Failed to canonicalize options")
	}

	digest := sha256.New()
	digest.Write(fileBytes)
	digest.Write(canonicalOptions)

	return hex.EncodeToString(digest.Sum(nil)), nil
}
