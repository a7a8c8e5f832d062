// Package digest computes the checksums, size and a sniffing prefix of a
// byte stream in a single pass.
package digest

import (
	"context"
	"crypto/md5"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"

	"go.uber.org/multierr"
)

const (
	// PrefixLimit caps the bytes retained for mimetype sniffing.
	PrefixLimit = 8096
	// ChunkSize is a multiple of the SHA-512 block size.
	ChunkSize = 32 * sha512.BlockSize
)

// Result is the outcome of one pass over a stream.
type Result struct {
	MD5    string
	SHA512 string
	Size   int64
	Prefix []byte
}

// Compute reads src to EOF, hashing every byte with MD5 and SHA-512 and
// forwarding each chunk to tee when tee is non-nil. src is closed exactly
// once on every return path; a close error is reported alongside any read
// error.
func Compute(ctx context.Context, src io.ReadCloser, tee io.Writer) (res Result, err error) {
	if src == nil {
		return Result{}, fmt.Errorf("source stream is required")
	}
	defer func() {
		err = multierr.Append(err, src.Close())
		if err != nil {
			res = Result{}
		}
	}()

	md5h := md5.New()
	sha512h := sha512.New()
	sinks := []io.Writer{md5h, sha512h}
	if tee != nil {
		sinks = append(sinks, tee)
	}
	out := io.MultiWriter(sinks...)

	prefix := make([]byte, 0, PrefixLimit)
	buf := make([]byte, ChunkSize)
	var size int64
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			size += int64(n)
			if room := PrefixLimit - len(prefix); room > 0 {
				if room > n {
					room = n
				}
				prefix = append(prefix, chunk[:room]...)
			}
			if _, werr := out.Write(chunk); werr != nil {
				return Result{}, fmt.Errorf("write chunk: %w", werr)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return Result{}, fmt.Errorf("read stream: %w", readErr)
		}
	}

	return Result{
		MD5:    hexSum(md5h),
		SHA512: hexSum(sha512h),
		Size:   size,
		Prefix: prefix,
	}, nil
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}
