package names

import (
	"encoding/binary"

	"github.com/pingcap/errors"
)

// ErrBadRecord flags a table record which is not a name record.
var ErrBadRecord = errors.New("malformed name record")

// ErrEmptyName is returned for attempts to store the empty name.
var ErrEmptyName = errors.New("empty name")

// A record is
//
//	uvarint(len(name)) | name | value
//
// so the name can be compared without knowing anything about the value.

func encodeRecord(name string, value []byte) []byte {
	rec := make([]byte, 0, binary.MaxVarintLen32+len(name)+len(value))
	rec = binary.AppendUvarint(rec, uint64(len(name)))
	rec = append(rec, name...)
	return append(rec, value...)
}

// decodeRecord splits a record into name and value. Both are views into rec.
func decodeRecord(rec []byte) (name []byte, value []byte, err error) {
	n, w := binary.Uvarint(rec)
	if w <= 0 || n > uint64(len(rec)-w) {
		return nil, nil, errors.Annotatef(ErrBadRecord, "name length prefix in %d bytes", len(rec))
	}
	end := w + int(n)
	return rec[w:end], rec[end:], nil
}
