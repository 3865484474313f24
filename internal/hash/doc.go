// Package hash provides the CRC32-Castagnoli checksum used for persisted
// index segments and S3 upload integrity headers.
//
// The standard library picks the SSE4.2 or ARMv8 CRC instructions when the
// CPU has them.
package hash
