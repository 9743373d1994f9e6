package process

import (
	"crypto/md5"
	"encoding/hex"
)

// GenerateProductID derives the stable identifier for a product. With a
// SKU it is "{supplier}_{sku}"; otherwise it falls back to
// "{supplier}_" plus the first 8 hex characters of the md5 of the
// product URL. The fallback is content-addressed and deterministic, but
// near-duplicate URLs that only differ in query strings hash to
// different ids, and the 32-bit truncated prefix leaves a non-trivial
// collision probability at very large catalog sizes. Both are accepted
// approximations; the id length is part of the persisted format.
func GenerateProductID(supplier, productURL, skuID string) string {
	if skuID != "" {
		return supplier + "_" + skuID
	}
	sum := md5.Sum([]byte(productURL))
	return supplier + "_" + hex.EncodeToString(sum[:])[:8]
}
