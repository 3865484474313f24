// Package resource bounds what persisting and loading location indexes may
// consume.
//
//   - Memory: a hard cap on bytes held by DataAccess buffers, fail-fast
//   - Workers: how many segments are compressed or decompressed at once
//   - IO: a token bucket on bytes moved to and from the blob store
//
// All methods are safe for concurrent use, and a nil *Controller imposes no
// limits.
package resource
