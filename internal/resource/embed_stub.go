//go:build !embed_ext

package resource

// Built without the embed_ext tag: no payload is bundled and Default
// resolves as Unsupported. Release builds pass -tags embed_ext after
// placing the platform payload in this directory.
var libraryData []byte
