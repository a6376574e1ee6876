package wsbridge

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Methods understood by the gateway.
const (
	MethodSendText    = "send_text"
	MethodFetchRecent = "fetch_recent"
	MethodClick       = "click"
)

// Request is one call to the gateway.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response answers the request with the same ID. Exactly one of Result and
// Error is set.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RemoteError    `json:"error,omitempty"`
}

// RemoteError is a failure reported by the gateway.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("wsbridge: %s: %s", e.Code, e.Message)
}

// SendTextParams are the parameters of send_text.
type SendTextParams struct {
	Chat string `json:"chat"`
	Text string `json:"text"`
}

// FetchRecentParams are the parameters of fetch_recent. The result is a
// list of chat.Message, most recent first, with "out" set on messages sent
// by the bridged account.
type FetchRecentParams struct {
	Chat  string `json:"chat"`
	Limit int    `json:"limit"`
}

// ClickParams are the parameters of click.
type ClickParams struct {
	Chat      string `json:"chat"`
	MessageID int64  `json:"message_id"`
	Row       int    `json:"row"`
	Col       int    `json:"col"`
}

// NewRequest builds a request with a fresh ID.
func NewRequest(method string, params any) (*Request, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return &Request{
		ID:     uuid.NewString(),
		Method: method,
		Params: data,
	}, nil
}
