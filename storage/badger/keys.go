package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/worklens/recall/core"
)

// Key prefixes for different data types
const (
	jobRecordPrefix  = "embjob"
	jobPendingPrefix = "embjobp"
	jobIDSeq         = "embjobseq"
	embeddingPrefix  = "embrec"
)

// makeJobKey generates a key for a job by ID.
func makeJobKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", jobRecordPrefix, id))
}

// makeJobPendingKey generates a composite key for the pending-queue index.
// Format: prefix:level:createdAt:id. Levels sort alphabetically
// (cycle < field < session), which is the dequeue order.
func makeJobPendingKey(level core.Level, createdAt time.Time, id core.ID) []byte {
	prefix := jobPendingPrefix + ":" + string(level) + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 16 // 8 bytes for timestamp + 8 bytes for ID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeEmbeddingKey generates a key for an embedding record by its composite key.
// Composite keys are unique per source, so rewriting the same source
// overwrites the prior record.
func makeEmbeddingKey(compositeKey string) []byte {
	return []byte(embeddingPrefix + ":" + compositeKey)
}
