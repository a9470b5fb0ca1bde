package payload

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/maneesh/buildmanager/internal/apperr"
)

// Payload is an upload body held in memory so it can be sent with a known length
type Payload struct {
	Data   []byte
	Size   int64
	Hash   string
	Chunks int
}

// Reader buffers upload bodies chunk by chunk and enforces a size limit
type Reader struct {
	chunkSize int64
	maxSize   int64
}

// NewReader creates a reader with the given chunk size and maximum body size.
// A maxSize of zero means unlimited.
func NewReader(chunkSize, maxSize int64) *Reader {
	if chunkSize <= 0 {
		chunkSize = 1024 * 1024
	}
	return &Reader{
		chunkSize: chunkSize,
		maxSize:   maxSize,
	}
}

// ReadAll drains src into a Payload
func (r *Reader) ReadAll(src io.Reader) (*Payload, error) {
	h := sha256.New()
	p := &Payload{}

	for {
		buffer := make([]byte, r.chunkSize)
		n, err := io.ReadFull(src, buffer)

		if n > 0 {
			if r.maxSize > 0 && p.Size+int64(n) > r.maxSize {
				return nil, apperr.New(apperr.KindValidation, "read upload",
					fmt.Sprintf("file exceeds the %d byte upload limit", r.maxSize))
			}
			p.Data = append(p.Data, buffer[:n]...)
			h.Write(buffer[:n])
			p.Size += int64(n)
			p.Chunks++
		}

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("error reading chunk: %w", err)
		}
	}

	p.Hash = hex.EncodeToString(h.Sum(nil))
	return p, nil
}

// ComputeHash computes the SHA256 hash of data
func ComputeHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
