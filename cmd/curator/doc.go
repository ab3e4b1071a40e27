// Command curator is the CLI for the curator media library engine: it files
// matched media into the library, applies batch operations to catalog items,
// and inspects catalog state.
package main
