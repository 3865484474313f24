// Package mmap maps persisted index files read-only into memory so the
// local blob store can serve reads without copying through the page cache.
//
// Unix uses mmap(2) and madvise(2) via golang.org/x/sys/unix. Windows uses
// file mapping views and ignores access hints.
//
// A Mapping is safe for concurrent readers. Close is idempotent; callers
// must not touch the slice returned by Bytes after Close.
package mmap
