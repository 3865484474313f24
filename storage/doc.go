// Package storage provides growable, segmented int32 arrays that persist to
// a blobstore.
//
// A Directory names a set of DataAccess arrays and decides where and how
// they are written: which blob store, which block compression, and which
// resource limits apply. A DataAccess holds fixed-size segments in memory,
// 32 int32 header slots, and is written as a single blob on Flush:
//
//	offset  size  field
//	0       4     magic "RKDA"
//	4       2     format version
//	6       1     compression
//	7       1     reserved
//	8       4     segment size in bytes
//	12      4     segment count
//	16      8     capacity in bytes
//	24      128   header slots
//	152     8*n   per segment: stored length, CRC32C of stored bytes
//	...     4     CRC32C of all preceding bytes
//	...           stored segments
//
// All integers are little endian. A DataAccess is not safe for concurrent
// mutation.
package storage
