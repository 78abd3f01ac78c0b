//go:build embed_ext && darwin && arm64

package resource

import _ "embed"

//go:embed sqlite_ext.dylib
var libraryData []byte
