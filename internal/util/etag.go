package util

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// Etag computes a weak precondition tag over any value. Callers presenting a
// matching tag on a read can be short-circuited with "not modified"; this is
// an optimization only, never a correctness requirement.
func Etag(v any) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%+v", v)))
	return hex.EncodeToString(sum[:])
}
