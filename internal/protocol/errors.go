package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest  = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion     = "E_PROTO_VERSION"
	ErrProtoUnknownType = "E_PROTO_UNKNOWN_TYPE"

	// World routing/state.
	ErrWorldBusy   = "E_WORLD_BUSY"
	ErrNoCharacter = "E_NO_CHARACTER"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrProtoVersion:     {},
	ErrProtoUnknownType: {},
	ErrWorldBusy:        {},
	ErrNoCharacter:      {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// ERROR (server -> client). The connection is closed after it is sent.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
