//go:build embed_ext && windows && amd64

package resource

import _ "embed"

//go:embed sqlite_ext.dll
var libraryData []byte
