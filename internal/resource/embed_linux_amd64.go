//go:build embed_ext && linux && amd64

package resource

import _ "embed"

//go:embed sqlite_ext.so
var libraryData []byte
