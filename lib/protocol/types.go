// Package protocol defines the 21-variant tagged-union message model and
// its JSON wire encoding. Each message is one Go struct with a Type
// discriminant and a set of optional fields, a flat discriminated-struct
// style common to multiplexed-session protocol catalogs, encoded with
// the standard library's encoding/json.
package protocol

// Type is the wire tag identifying a message variant. Values are stable
// and numbered 1..21; 8 is reserved and unused.
type Type uint8

const (
	KeyExchangeInit    Type = 1
	KeyExchangeReply   Type = 2
	AuthRequest        Type = 3
	AuthSuccess        Type = 4
	AuthFailure        Type = 5
	ServiceRequest     Type = 6
	ServiceAccept      Type = 7
	shellDataReserved  Type = 8 // reserved, never emitted or accepted
	ShellCommand       Type = 9
	ShellResult        Type = 10
	FileUploadRequest  Type = 11
	FileDownloadReq    Type = 12
	FileData           Type = 13
	FileAck            Type = 14
	ErrorMessage       Type = 15
	Disconnect         Type = 16
	ReloadUsers        Type = 17
	PortForwardRequest Type = 18
	PortForwardAccept  Type = 19
	PortForwardData    Type = 20
	PortForwardClose   Type = 21
)

// ReservedShellData reports whether t is the reserved-but-unused tag 8,
// which implementations should reject on the wire.
func ReservedShellData(t Type) bool { return t == shellDataReserved }

func (t Type) Valid() bool {
	return t >= KeyExchangeInit && t <= PortForwardClose
}

func (t Type) String() string {
	switch t {
	case KeyExchangeInit:
		return "KEY_EXCHANGE_INIT"
	case KeyExchangeReply:
		return "KEY_EXCHANGE_REPLY"
	case AuthRequest:
		return "AUTH_REQUEST"
	case AuthSuccess:
		return "AUTH_SUCCESS"
	case AuthFailure:
		return "AUTH_FAILURE"
	case ServiceRequest:
		return "SERVICE_REQUEST"
	case ServiceAccept:
		return "SERVICE_ACCEPT"
	case shellDataReserved:
		return "SHELL_DATA"
	case ShellCommand:
		return "SHELL_COMMAND"
	case ShellResult:
		return "SHELL_RESULT"
	case FileUploadRequest:
		return "FILE_UPLOAD_REQUEST"
	case FileDownloadReq:
		return "FILE_DOWNLOAD_REQUEST"
	case FileData:
		return "FILE_DATA"
	case FileAck:
		return "FILE_ACK"
	case ErrorMessage:
		return "ERROR"
	case Disconnect:
		return "DISCONNECT"
	case ReloadUsers:
		return "RELOAD_USERS"
	case PortForwardRequest:
		return "PORT_FORWARD_REQUEST"
	case PortForwardAccept:
		return "PORT_FORWARD_ACCEPT"
	case PortForwardData:
		return "PORT_FORWARD_DATA"
	case PortForwardClose:
		return "PORT_FORWARD_CLOSE"
	default:
		return "UNKNOWN"
	}
}

// ForwardDirection distinguishes the two port-forward modes.
type ForwardDirection string

const (
	Local  ForwardDirection = "LOCAL"
	Remote ForwardDirection = "REMOTE"
)

// AuthType is the authentication mode requested in an AUTH_REQUEST.
type AuthType string

const (
	AuthPassword  AuthType = "password"
	AuthPublicKey AuthType = "publickey"
	AuthDual      AuthType = "dual"
)

// Message is the single payload-carrying struct for all 21 variants. Only
// the fields relevant to Type are populated; encoding to JSON omits the
// empty ones, except success, exitCode and sequenceNumber, which are always
// written. The Seq field is not part of the JSON payload — it is carried in
// the framing header by lib/wire, as is the MAC trailer, which has no field
// here — but is kept so a decoded record's sequence number can travel with
// it.
type Message struct {
	Type Type `json:"type"`
	Seq  uint32 `json:"-"`

	// KEY_EXCHANGE_INIT / KEY_EXCHANGE_REPLY
	DHPublicKey     []byte `json:"dhPublicKey,omitempty"`
	ClientID        string `json:"clientId,omitempty"`
	ServerID        string `json:"serverId,omitempty"`
	ServerPublicKey []byte `json:"serverPublicKey,omitempty"`
	Signature       []byte `json:"signature,omitempty"`
	SessionID       string `json:"sessionId,omitempty"`

	// AUTH_REQUEST
	Username  string   `json:"username,omitempty"`
	AuthType  AuthType `json:"authType,omitempty"`
	Password  string   `json:"password,omitempty"`
	PublicKey []byte   `json:"publicKey,omitempty"`

	// AUTH_SUCCESS / AUTH_FAILURE
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`

	// SERVICE_REQUEST / SERVICE_ACCEPT
	Service string `json:"service,omitempty"`

	// SHELL_COMMAND / SHELL_RESULT
	Command          string `json:"command,omitempty"`
	WorkingDirectory string `json:"workingDirectory,omitempty"`
	ExitCode         int    `json:"exitCode"`
	Stdout           string `json:"stdout,omitempty"`
	Stderr           string `json:"stderr,omitempty"`

	// FILE_UPLOAD_REQUEST / FILE_DOWNLOAD_REQUEST / FILE_DATA / FILE_ACK
	Filename       string `json:"filename,omitempty"`
	FileSize       int64  `json:"fileSize,omitempty"`
	TargetPath     string `json:"targetPath,omitempty"`
	SequenceNumber uint32 `json:"sequenceNumber"`
	Data           []byte `json:"data,omitempty"`
	IsLast         bool   `json:"isLast,omitempty"`
	Status         string `json:"status,omitempty"`

	// ERROR
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Details      string `json:"details,omitempty"`

	// PORT_FORWARD_*
	ForwardType  ForwardDirection `json:"forwardType,omitempty"`
	SourcePort   int              `json:"sourcePort,omitempty"`
	DestHost     string           `json:"destHost,omitempty"`
	DestPort     int              `json:"destPort,omitempty"`
	ConnectionID string           `json:"connectionId,omitempty"`
}
