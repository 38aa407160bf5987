// Package bstr implements length-prefixed strings stored in a Memory.
//
// Layout at the block returned by the allocator:
//
//	[u32 byte length][payload ...][zero terminator]
//	                 ^ string address
//
// The string address points at the first character, so readers that only
// know about NUL-terminated text keep working while the length prefix allows
// embedded zeros. Characters are 1, 2 or 4 bytes wide; wide strings are
// UTF-16LE or UTF-32LE.
package bstr
