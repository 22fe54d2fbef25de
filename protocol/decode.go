package protocol

import (
	"fmt"

	"github.com/go-orient/orient/orienterr"
	"github.com/go-orient/orient/record"
	"github.com/go-orient/orient/wire"
)

// RecordResult is one record returned by record_load or command: the
// decoded document plus its identity and version as reported by the
// server frame (not necessarily echoing the request's RID, since
// record_load can return supplementary linked records too — this core
// keeps only the primary result).
type RecordResult struct {
	Type    byte // 'd' document, 'f' flat/raw, 'b' binary blob
	Version int32
	Doc     *record.Document
	Raw     []byte // populated instead of Doc when Type != 'd'
}

func decodeRecordResult(b []byte, schema *record.Schema) (RecordResult, []byte, error) {
	typ, rest, err := wire.Int8(b)
	if err != nil {
		return RecordResult{}, b, err
	}
	version, rest2, err := wire.Int32(rest)
	if err != nil {
		return RecordResult{}, b, err
	}
	content, rest3, err := wire.Bytes(rest2)
	if err != nil {
		return RecordResult{}, b, err
	}
	if byte(typ) != 'd' {
		return RecordResult{Type: byte(typ), Version: version, Raw: content}, rest3, nil
	}
	doc, leftover, err := record.Decode(content, schema)
	if err != nil {
		return RecordResult{}, b, err
	}
	if len(leftover) != 0 {
		return RecordResult{}, b, fmt.Errorf("%w: trailing bytes after record content", orienterr.ErrMalformedResponse)
	}
	return RecordResult{Type: byte(typ), Version: version, Doc: doc}, rest3, nil
}

// DecodeDBSize decodes db_size's payload: a single i64 record count.
func DecodeDBSize(b []byte) (int64, []byte, error) {
	return wire.Int64(b)
}

// DecodeDBCountRecords decodes db_countrecords' payload: a single i64.
func DecodeDBCountRecords(b []byte) (int64, []byte, error) {
	return wire.Int64(b)
}

// DecodeDBExist decodes db_exist's payload: a single boolean.
func DecodeDBExist(b []byte) (bool, []byte, error) {
	return wire.Bool(b)
}

// DecodeDBList decodes db_list's payload: a serialized document listing
// known databases (field "databases": embedded map of name -> URL).
func DecodeDBList(b []byte, schema *record.Schema) (*record.Document, []byte, error) {
	content, rest, err := wire.Bytes(b)
	if err != nil {
		return nil, b, err
	}
	doc, leftover, err := record.Decode(content, schema)
	if err != nil {
		return nil, b, err
	}
	if len(leftover) != 0 {
		return nil, b, fmt.Errorf("%w: trailing bytes after db_list payload", orienterr.ErrMalformedResponse)
	}
	return doc, rest, nil
}

// RecordLoadResult is record_load's payload: zero or more records
// (primary plus any server-fetched linked records), terminated by a
// zero-byte marker. This core surfaces only the first (primary) record to
// the caller; Found is false when the server reported no record at that RID.
type RecordLoadResult struct {
	Found   bool
	Primary RecordResult
}

// DecodeRecordLoad decodes record_load's payload: a sequence of
// (more-byte, record) entries terminated by a zero more-byte.
func DecodeRecordLoad(b []byte, schema *record.Schema) (RecordLoadResult, []byte, error) {
	more, rest, err := wire.Bool(b)
	if err != nil {
		return RecordLoadResult{}, b, err
	}
	if !more {
		return RecordLoadResult{Found: false}, rest, nil
	}
	primary, rest2, err := decodeRecordResult(rest, schema)
	if err != nil {
		return RecordLoadResult{}, b, err
	}
	rest = rest2
	// Drain any supplementary linked records the server chose to prefetch.
	for {
		again, r2, err := wire.Bool(rest)
		if err != nil {
			return RecordLoadResult{}, b, err
		}
		rest = r2
		if !again {
			break
		}
		_, r3, err := decodeRecordResult(rest, schema)
		if err != nil {
			return RecordLoadResult{}, b, err
		}
		rest = r3
	}
	return RecordLoadResult{Found: true, Primary: primary}, rest, nil
}

// RecordCreateResult is record_create's payload: the RID the server
// assigned plus the initial version.
type RecordCreateResult struct {
	RID     record.RID
	Version int32
}

// DecodeRecordCreate decodes record_create's payload.
func DecodeRecordCreate(b []byte) (RecordCreateResult, []byte, error) {
	cluster, rest, err := wire.Int16(b)
	if err != nil {
		return RecordCreateResult{}, b, err
	}
	position, rest2, err := wire.Int64(rest)
	if err != nil {
		return RecordCreateResult{}, b, err
	}
	version, rest3, err := wire.Int32(rest2)
	if err != nil {
		return RecordCreateResult{}, b, err
	}
	return RecordCreateResult{RID: record.RID{Cluster: cluster, Position: position}, Version: version}, rest3, nil
}

// DecodeRecordUpdate decodes record_update's payload: the new version.
func DecodeRecordUpdate(b []byte) (int32, []byte, error) {
	return wire.Int32(b)
}

// DecodeRecordDelete decodes record_delete's payload: whether the record
// was found and removed.
func DecodeRecordDelete(b []byte) (bool, []byte, error) {
	return wire.Bool(b)
}

// CommandResult is command's payload: either no result, a single record,
// or a list of records.
type CommandResult struct {
	Kind    byte // 'n' null, 'r' single record, 'l' list
	Record  RecordResult
	Records []RecordResult
}

// DecodeCommand decodes command's payload.
func DecodeCommand(b []byte, schema *record.Schema) (CommandResult, []byte, error) {
	kind, rest, err := wire.Int8(b)
	if err != nil {
		return CommandResult{}, b, err
	}
	switch byte(kind) {
	case 'n':
		return CommandResult{Kind: 'n'}, rest, nil
	case 'r':
		rec, rest2, err := decodeRecordResult(rest, schema)
		if err != nil {
			return CommandResult{}, b, err
		}
		return CommandResult{Kind: 'r', Record: rec}, rest2, nil
	case 'l':
		count, rest2, err := wire.Int32(rest)
		if err != nil {
			return CommandResult{}, b, err
		}
		recs := make([]RecordResult, 0, count)
		for i := int32(0); i < count; i++ {
			rec, r3, err := decodeRecordResult(rest2, schema)
			if err != nil {
				return CommandResult{}, b, err
			}
			recs = append(recs, rec)
			rest2 = r3
		}
		return CommandResult{Kind: 'l', Records: recs}, rest2, nil
	default:
		return CommandResult{}, b, fmt.Errorf("%w: unknown command result kind %q", orienterr.ErrMalformedResponse, byte(kind))
	}
}

// TxCommitResult maps client-side temporary RIDs (negative cluster ids
// assigned locally before commit) to the RIDs the server actually
// assigned, plus the new version of every updated record.
type TxCommitResult struct {
	Created []TxCreatedEntry
	Updated []TxUpdatedEntry
}

type TxCreatedEntry struct {
	TempRID record.RID
	RID     record.RID
}

type TxUpdatedEntry struct {
	RID     record.RID
	Version int32
}

// DecodeTxCommit decodes tx_commit's payload.
func DecodeTxCommit(b []byte) (TxCommitResult, []byte, error) {
	createdCount, rest, err := wire.Int32(b)
	if err != nil {
		return TxCommitResult{}, b, err
	}
	created := make([]TxCreatedEntry, 0, createdCount)
	for i := int32(0); i < createdCount; i++ {
		tempCluster, r2, err := wire.Int16(rest)
		if err != nil {
			return TxCommitResult{}, b, err
		}
		tempPos, r3, err := wire.Int64(r2)
		if err != nil {
			return TxCommitResult{}, b, err
		}
		newCluster, r4, err := wire.Int16(r3)
		if err != nil {
			return TxCommitResult{}, b, err
		}
		newPos, r5, err := wire.Int64(r4)
		if err != nil {
			return TxCommitResult{}, b, err
		}
		created = append(created, TxCreatedEntry{
			TempRID: record.RID{Cluster: tempCluster, Position: tempPos},
			RID:     record.RID{Cluster: newCluster, Position: newPos},
		})
		rest = r5
	}

	updatedCount, rest2, err := wire.Int32(rest)
	if err != nil {
		return TxCommitResult{}, b, err
	}
	updated := make([]TxUpdatedEntry, 0, updatedCount)
	for i := int32(0); i < updatedCount; i++ {
		cluster, r2, err := wire.Int16(rest2)
		if err != nil {
			return TxCommitResult{}, b, err
		}
		pos, r3, err := wire.Int64(r2)
		if err != nil {
			return TxCommitResult{}, b, err
		}
		version, r4, err := wire.Int32(r3)
		if err != nil {
			return TxCommitResult{}, b, err
		}
		updated = append(updated, TxUpdatedEntry{RID: record.RID{Cluster: cluster, Position: pos}, Version: version})
		rest2 = r4
	}

	return TxCommitResult{Created: created, Updated: updated}, rest2, nil
}
