package protocol

import (
	"github.com/go-orient/orient/wire"
)

// RecordSerializerName is the only record serializer this core speaks.
const RecordSerializerName = "ORecordSerializerBinary"

// DecodeProtocolVersion reads the two raw bytes a freshly opened socket
// sends before anything else: the server's protocol version.
func DecodeProtocolVersion(b []byte) (int16, []byte, error) {
	return wire.Int16(b)
}

// HandshakeParams are the fields common to both connect and db_open.
type HandshakeParams struct {
	ClientName     string
	DriverVersion  string
	ProtocolShort  int16
	ClientID       string
	TokenBasedAuth bool // always false in this core; session tokens are out of scope
	User           string
	Password       string
}

// EncodeConnect builds a server-scope connect request. The session id in
// the frame header is always -1 for a handshake: no session has been
// issued yet.
func EncodeConnect(params HandshakeParams) []byte {
	args := []Arg{
		String(params.ClientName),
		String(params.DriverVersion),
		Short(params.ProtocolShort),
		String(params.ClientID),
		String(RecordSerializerName),
		Bool(params.TokenBasedAuth),
		String(params.User),
		String(params.Password),
	}
	return EncodeRequest(Connect.Code, -1, args)
}

// EncodeDBOpen builds a database-scope db_open request.
func EncodeDBOpen(params HandshakeParams, databaseName, databaseKind string) []byte {
	args := []Arg{
		String(params.ClientName),
		String(params.DriverVersion),
		Short(params.ProtocolShort),
		String(params.ClientID),
		String(RecordSerializerName),
		Bool(params.TokenBasedAuth),
		String(databaseName),
		String(databaseKind),
		String(params.User),
		String(params.Password),
	}
	return EncodeRequest(OpDBOpen, -1, args)
}

// HandshakeReply is the common success payload of both connect and
// db_open: the freshly issued session id and an optional token (always
// null in this core, since token-based auth is a non-goal).
type HandshakeReply struct {
	SessionID int32
	Token     []byte
}

// DecodeHandshakeReply decodes the session id and token common to both
// connect and db_open success payloads, after the status/session header
// has already been consumed by DecodeHeader.
func DecodeHandshakeReply(b []byte) (HandshakeReply, []byte, error) {
	sessionID, rest, err := wire.Int32(b)
	if err != nil {
		return HandshakeReply{}, b, err
	}
	token, rest2, err := wire.Bytes(rest)
	if err != nil {
		return HandshakeReply{}, b, err
	}
	return HandshakeReply{SessionID: sessionID, Token: token}, rest2, nil
}

// ClusterInfo is one entry of db_open's trailing cluster metadata.
type ClusterInfo struct {
	Name string
	ID   int16
}

// DBOpenMetadata is the cluster metadata db_open's success payload carries
// after the common HandshakeReply fields. The core state machine parses
// and returns it but otherwise ignores its contents.
type DBOpenMetadata struct {
	Clusters      []ClusterInfo
	ClusterConfig []byte
	Release       string
}

// DecodeDBOpenMetadata decodes the cluster metadata that follows a
// db_open's HandshakeReply.
func DecodeDBOpenMetadata(b []byte) (DBOpenMetadata, []byte, error) {
	count, rest, err := wire.Int16(b)
	if err != nil {
		return DBOpenMetadata{}, b, err
	}
	clusters := make([]ClusterInfo, 0, count)
	for i := int16(0); i < count; i++ {
		name, r2, err := wire.String(rest)
		if err != nil {
			return DBOpenMetadata{}, b, err
		}
		id, r3, err := wire.Int16(r2)
		if err != nil {
			return DBOpenMetadata{}, b, err
		}
		clusters = append(clusters, ClusterInfo{Name: name, ID: id})
		rest = r3
	}
	clusterConfig, rest4, err := wire.Bytes(rest)
	if err != nil {
		return DBOpenMetadata{}, b, err
	}
	release, rest5, err := wire.String(rest4)
	if err != nil {
		return DBOpenMetadata{}, b, err
	}
	return DBOpenMetadata{Clusters: clusters, ClusterConfig: clusterConfig, Release: release}, rest5, nil
}
