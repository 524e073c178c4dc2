package connector

// The process connector speaks newline-delimited JSON with the service
// child process: requests flow supervisor -> service on stdin, notices
// flow service -> supervisor on stdout. One JSON object per line.

// Request operations sent to the service.
const (
	opAttach = "attach"
	opFinish = "finish"
	opDetach = "detach"
)

// Notice events received from the service.
const (
	noticeStarted = "started"
)

// request is a supervisor -> service message.
type request struct {
	Op      string `json:"op"`
	Token   string `json:"token,omitempty"`
	CanDoze bool   `json:"can_doze,omitempty"`
}

// notice is a service -> supervisor message.
type notice struct {
	Event string `json:"event"`
}
