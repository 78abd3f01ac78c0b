// Package artifact manages the extracted library files and their paired
// lock files in the temp directory: stable naming, collision-free creation,
// and reclamation of pairs left behind by earlier runs.
package artifact

import (
	"fmt"

	"github.com/google/uuid"
)

// namespaceUUID is the fixed namespace for deriving artifact identities.
// Changing it orphans artifacts written by earlier builds.
var namespaceUUID = uuid.MustParse("125626a0-9d3a-4aeb-b2ed-5770cb0665cc")

// Identity returns the stable identifier for a (package, name) payload
// pair. Identical inputs yield the identical identifier across runs,
// processes and machines, so a later run can recognize artifacts written by
// an earlier one without colliding with unrelated payloads.
func Identity(pkg, name string) string {
	return uuid.NewSHA1(namespaceUUID, []byte(pkg+"."+name)).String()
}

// Prefix returns the temp-file name prefix shared by both halves of an
// artifact pair.
//
// Example: "sqlite_ext.{5f3e3153-5bce-5766-8f84-3e3e7ecf0d81}.tmp"
func Prefix(pkg, name string) string {
	return fmt.Sprintf("%s.{%s}.tmp", name, Identity(pkg, name))
}
