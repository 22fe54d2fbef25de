package orient

import (
	"fmt"

	"github.com/go-orient/orient/orienterr"
	"github.com/go-orient/orient/protocol"
	"github.com/go-orient/orient/record"
)

// schemaRID is the well-known record holding the global property
// dictionary every schemaful document's field table is resolved against.
// It is itself always schemaless (record.Decode never consults the schema
// map for a named field-table entry, satisfying the bootstrap).
var schemaRID = record.RID{Cluster: 0, Position: 1}

// schemaFetchArgs builds the record_load argument list for schemaRID: RID,
// fetch plan, ignore-cache, load-tombstones. Both bootstrapSchema (run
// synchronously during Dial) and FetchSchema (run through the regular
// pipeline) must send the exact same request, since both are loading the
// exact same record.
func schemaFetchArgs() []protocol.Arg {
	return []protocol.Arg{
		protocol.Short(schemaRID.Cluster),
		protocol.Long(schemaRID.Position),
		protocol.String(""),
		protocol.Bool(true),
		protocol.Bool(false),
	}
}

// bootstrapSchema performs a synchronous record_load of schemaRID during
// Dial, before the agent loop starts. Subsequent refetches (after
// orienterr.ErrUnknownPropertyID) go through FetchSchema instead, which
// runs through the regular pipeline.
func (c *Conn) bootstrapSchema() error {
	frame := protocol.EncodeRequest(protocol.RecordLoad.Code, c.sessionID.Load(), schemaFetchArgs())
	if _, err := c.netConn.Write(frame); err != nil {
		return &orienterr.TransportError{Err: err}
	}

	buf := c.tail
	hdr, err := readUntil(c.netConn, &buf, protocol.DecodeHeader)
	if err != nil {
		return &orienterr.TransportError{Err: err}
	}
	if hdr.Status == protocol.StatusError {
		errPayload, err := readUntil(c.netConn, &buf, protocol.DecodeErrorPayload)
		if err != nil {
			return &orienterr.TransportError{Err: err}
		}
		return errPayload
	}

	result, err := readUntil(c.netConn, &buf, func(b []byte) (protocol.RecordLoadResult, []byte, error) {
		return protocol.DecodeRecordLoad(b, nil)
	})
	if err != nil {
		return &orienterr.TransportError{Err: err}
	}
	c.tail = buf

	if !result.Found || result.Primary.Doc == nil {
		return fmt.Errorf("%w: schema bootstrap record not found at %s", orienterr.ErrMalformedResponse, schemaRID)
	}
	schema, err := parseGlobalProperties(result.Primary.Doc)
	if err != nil {
		return err
	}
	c.schema.Store(schema)
	return nil
}

// parseGlobalProperties reads the "globalProperties" embedded list off the
// schema bootstrap record: a list of embedded documents each carrying an
// "id", a "name", and a "type" (the record.TypeCode the property's values
// are stored as).
func parseGlobalProperties(doc *record.Document) (*record.Schema, error) {
	field, ok := doc.Get("globalProperties")
	if !ok || field.Null {
		return record.NewSchema(nil), nil
	}

	properties := make(map[int32]record.PropertyMeta, len(field.List))
	for _, item := range field.List {
		if item.Embedded == nil {
			continue
		}
		idVal, ok := item.Embedded.Get("id")
		if !ok {
			return nil, fmt.Errorf("%w: global property missing id", orienterr.ErrMalformedResponse)
		}
		nameVal, ok := item.Embedded.Get("name")
		if !ok {
			return nil, fmt.Errorf("%w: global property missing name", orienterr.ErrMalformedResponse)
		}
		typeVal, ok := item.Embedded.Get("type")
		if !ok {
			return nil, fmt.Errorf("%w: global property missing type", orienterr.ErrMalformedResponse)
		}
		properties[idVal.Int32] = record.PropertyMeta{
			Name: nameVal.String,
			Type: record.TypeCode(typeVal.Int32),
		}
	}
	return record.NewSchema(properties), nil
}
