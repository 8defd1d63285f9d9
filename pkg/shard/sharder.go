// Package shard maps subjects onto a fixed integer space. The hash is pinned to
// MD5 so that every SDK places a subject in the same shard.
package shard

import (
	"crypto/md5" //nolint:gosec // used for bucketing, not security
	"encoding/binary"
)

// Sharder maps an input string to a shard in [0, totalShards).
type Sharder interface {
	Shard(input string, totalShards uint64) uint64
}

// MD5Sharder takes the first four bytes of the MD5 digest as a big-endian
// uint32 and reduces it modulo totalShards.
type MD5Sharder struct{}

func (MD5Sharder) Shard(input string, totalShards uint64) uint64 {
	sum := md5.Sum([]byte(input)) //nolint:gosec
	return uint64(binary.BigEndian.Uint32(sum[:4])) % totalShards
}

// Precomputed returns fixed shards for known inputs and defers to MD5Sharder
// for everything else. Useful for pinning subjects in tests.
type Precomputed map[string]uint64

func (p Precomputed) Shard(input string, totalShards uint64) uint64 {
	if v, ok := p[input]; ok {
		return v % totalShards
	}
	return MD5Sharder{}.Shard(input, totalShards)
}

// Key builds the hash input for a salt and subject.
func Key(salt, subjectKey string) string {
	return salt + "-" + subjectKey
}
