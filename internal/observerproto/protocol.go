package observerproto

// Version is the observer protocol version.
const Version = "1.0"

const (
	TypeSubscribe  = "SUBSCRIBE"
	TypeHello      = "HELLO"
	TypeActivation = "ACTIVATION"
	TypeChunk      = "CHUNK"
)

// Client -> Server. First message on the observer WS connection; may be
// re-sent to change settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// MaxChunks caps each coordinate list in ACTIVATION messages.
	MaxChunks     int  `json:"max_chunks"`
	IncludeActive bool `json:"include_active"`
}

// HTTP response for GET /v1/observe/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Frame           uint64      `json:"frame"`
	WorldParams     WorldParams `json:"world_params"`
	Materials       []string    `json:"materials"`
}

type WorldParams struct {
	TickRateHz int   `json:"tick_rate_hz"`
	ChunkSize  int   `json:"chunk_size"`
	Seed       int64 `json:"seed"`
	DayFrames  int   `json:"day_frames"`
}

// Server -> Client, once after a valid SUBSCRIBE.
type HelloMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	WorldID         string      `json:"world_id"`
	Frame           uint64      `json:"frame"`
	WorldParams     WorldParams `json:"world_params"`
}

// Server -> Client, whenever the published frame advances.
type ActivationMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Frame           uint64 `json:"frame"`

	TimeOfDay float64 `json:"time_of_day"`
	DayCount  int     `json:"day_count"`
	Raining   bool    `json:"raining"`

	Player         *[2]int  `json:"player,omitempty"`
	ActiveRadius   int      `json:"active_radius"`
	RenderDistance int      `json:"render_distance"`
	Simulating     [][2]int `json:"simulating"`
	Active         [][2]int `json:"active,omitempty"`
	Truncated      bool     `json:"truncated,omitempty"`
	Dirty          int      `json:"dirty"`

	Tree TreeInfo `json:"tree"`

	Loaded  int   `json:"loaded"`
	Pending int   `json:"pending"`
	Changed int   `json:"changed"`
	Micros  int64 `json:"micros"`
}

type TreeInfo struct {
	Nodes    int `json:"nodes"`
	Items    int `json:"items"`
	MaxDepth int `json:"max_depth"`
}

// HTTP response for GET /v1/observe/chunk?cx=&cy=. Materials holds
// base64 (id, run) uvarint pairs in row-major order.
type ChunkMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Frame           uint64 `json:"frame"`
	CX              int    `json:"cx"`
	CY              int    `json:"cy"`
	Size            int    `json:"size"`
	Materials       string `json:"materials"`
}
