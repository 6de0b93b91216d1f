package command

import (
	"encoding/json"
	"fmt"

	"tuplespace/internal/tuple"
)

// OpType enumerates the operations that travel through the replicated log
// (and READ, which rides the linearizable local-read path instead).
type OpType string

const (
	OpCreateSpace OpType = "CREATE_SPACE"
	OpDropSpace   OpType = "DROP_SPACE"
	OpOut         OpType = "OUT"
	OpTake        OpType = "TAKE"
	OpRead        OpType = "READ"
)

type ErrorCode string

const (
	CodeNoMatch     ErrorCode = "NO_MATCH"
	CodeNoSuchSpace ErrorCode = "NO_SUCH_SPACE"
	CodeSpaceExists ErrorCode = "SPACE_EXISTS"
	CodeInvalid     ErrorCode = "INVALID_REQUEST"
	CodeNotLeader   ErrorCode = "NOT_LEADER"
	CodeUnavailable ErrorCode = "UNAVAILABLE"
	CodeInternal    ErrorCode = "INTERNAL"
)

type Request struct {
	EventID uint64 `json:"event_id"`
	// ProposerID is the node that proposed the entry and holds the only
	// pending waiter entitled to its response.
	ProposerID uint64        `json:"proposer_id,omitempty"`
	Type       OpType        `json:"type"`
	Space      string        `json:"space"`
	Tuple      tuple.Tuple   `json:"tuple,omitempty"`
	Pattern    tuple.Pattern `json:"pattern,omitempty"`
	Recreate   bool          `json:"recreate,omitempty"`
}

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type Response struct {
	EventID uint64      `json:"event_id"`
	Success bool        `json:"success"`
	Tuple   tuple.Tuple `json:"tuple,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// NoMatch reports whether the response is the defined blocking condition
// rather than a real failure.
func (r *Response) NoMatch() bool {
	return !r.Success && r.Error != nil && r.Error.Code == CodeNoMatch
}

func EncodeRequest(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("unmarshal command: %w", err)
	}
	return &req, nil
}

func SuccessResponse(eventID uint64) *Response {
	return &Response{EventID: eventID, Success: true}
}

func TupleResponse(eventID uint64, t tuple.Tuple) *Response {
	return &Response{EventID: eventID, Success: true, Tuple: t}
}

func ErrorResponse(eventID uint64, code ErrorCode, msg string) *Response {
	return &Response{
		EventID: eventID,
		Success: false,
		Error:   &Error{Code: code, Message: msg},
	}
}
