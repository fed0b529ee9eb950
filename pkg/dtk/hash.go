package dtk

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"hash"
	"io"

	"github.com/zeebo/blake3"
)

// digester computes the optional integrity fields over stored chunks fed in
// file order: SHA-1 and MD5 over all chunk bytes (what the v1 serializer
// recorded for its payload) and one BLAKE3-256 digest per chunk.
type digester struct {
	sha1   hash.Hash
	md5    hash.Hash
	chunks []string
}

func newDigester(n int) *digester {
	return &digester{
		sha1:   sha1.New(),
		md5:    md5.New(),
		chunks: make([]string, n),
	}
}

func (d *digester) add(index int, r io.Reader) error {
	b := blake3.New()
	if _, err := io.Copy(io.MultiWriter(d.sha1, d.md5, b), r); err != nil {
		return err
	}
	d.chunks[index] = hex.EncodeToString(b.Sum(nil))
	return nil
}

func (d *digester) sha1Hex() string { return hex.EncodeToString(d.sha1.Sum(nil)) }
func (d *digester) md5Hex() string  { return hex.EncodeToString(d.md5.Sum(nil)) }
