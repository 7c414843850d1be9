package hashing

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
)

// sampleSize is the number of bytes hashed from each end of the file.
const sampleSize = 64 * 1024

// Partial computes the cheap content fingerprint over the first 64 KiB, the
// last 64 KiB, and the file size. I/O cost is constant regardless of file
// size. The result is a pre-filter only: collisions are treated as
// non-negligible and identity is confirmed with Full before any destructive
// decision.
func Partial(r io.ReadSeeker, size int64) (string, error) {
	h := sha256.New()

	if size <= 2*sampleSize {
		// Small file: hash the whole content once.
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("seek to start: %w", err)
		}
		if _, err := io.Copy(h, io.LimitReader(r, size)); err != nil {
			return "", fmt.Errorf("read content: %w", err)
		}
	} else {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("seek to head: %w", err)
		}
		if _, err := io.CopyN(h, r, sampleSize); err != nil {
			return "", fmt.Errorf("read head sample: %w", err)
		}

		if _, err := r.Seek(size-sampleSize, io.SeekStart); err != nil {
			return "", fmt.Errorf("seek to tail: %w", err)
		}
		if _, err := io.CopyN(h, r, sampleSize); err != nil {
			return "", fmt.Errorf("read tail sample: %w", err)
		}
	}

	var sizeBuf [8]byte
	binary.BigEndian.PutUint64(sizeBuf[:], uint64(size))
	h.Write(sizeBuf[:])

	return hex.EncodeToString(h.Sum(nil)), nil
}

// PartialBytes computes the partial fingerprint over an in-memory payload,
// used for archive members that are decompressed rather than seekable.
func PartialBytes(head, tail []byte, size int64) string {
	h := sha256.New()
	h.Write(head)
	h.Write(tail)
	var sizeBuf [8]byte
	binary.BigEndian.PutUint64(sizeBuf[:], uint64(size))
	h.Write(sizeBuf[:])
	return hex.EncodeToString(h.Sum(nil))
}

// PartialStream computes the partial fingerprint from a non-seekable stream
// by buffering the head and a rolling tail window. The whole stream is read
// (archive members have to be decompressed anyway) but only the samples and
// the size enter the digest, so the result matches Partial over the same
// content. Returns the fingerprint and the total size consumed.
func PartialStream(r io.Reader) (string, int64, error) {
	head := make([]byte, 0, sampleSize)
	tail := make([]byte, 0, 2*sampleSize)
	var size int64

	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			size += int64(n)
			chunk := buf[:n]
			if len(head) < sampleSize {
				take := sampleSize - len(head)
				if take > len(chunk) {
					take = len(chunk)
				}
				head = append(head, chunk[:take]...)
			}
			tail = append(tail, chunk...)
			if len(tail) > sampleSize {
				// Keep only the trailing window; copy down to bound growth.
				tail = append(tail[:0], tail[len(tail)-sampleSize:]...)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("read stream: %w", err)
		}
	}

	if size <= 2*sampleSize {
		// Mirror Partial's small-file path: whole content once. head holds
		// the first 64 KiB; whatever follows it is the suffix of the tail
		// window.
		whole := head
		if rest := size - int64(len(head)); rest > 0 {
			whole = append(append([]byte{}, head...), tail[int64(len(tail))-rest:]...)
		}
		return PartialBytes(whole, nil, size), size, nil
	}
	return PartialBytes(head, tail, size), size, nil
}

// Full computes the whole-file cryptographic hash. Only computed for
// partial-hash collision candidates, never during an initial full-library
// scan.
func Full(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("read content for full hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
