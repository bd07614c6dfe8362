package proto

import (
	"math"

	"github.com/tidwall/gjson"
)

// Error codes carried in error frames.
const (
	CodeInvalidJSON = "invalid_json"
	CodeBadRequest  = "bad_request"
)

// Inbound is a direct message sent by the client.
type Inbound struct {
	ReceiverID int64  `json:"receiver_id"`
	Content    string `json:"content"`
}

// Outbound is a direct message pushed to its receiver.
type Outbound struct {
	SenderID  int64  `json:"sender_id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ErrorFrame reports a rejected inbound frame. The connection stays open.
type ErrorFrame struct {
	Error *Error `json:"error"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// DecodeInbound validates and decodes a client frame.
// It returns a protocol error instead of a Go error so callers can answer
// the client and keep reading.
func DecodeInbound(data []byte) (Inbound, *Error) {
	if !gjson.ValidBytes(data) {
		return Inbound{}, &Error{Code: CodeInvalidJSON, Msg: "frame is not valid JSON"}
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Inbound{}, &Error{Code: CodeInvalidJSON, Msg: "frame must be a JSON object"}
	}

	receiver := root.Get("receiver_id")
	if !receiver.Exists() {
		return Inbound{}, &Error{Code: CodeBadRequest, Msg: "receiver_id is required"}
	}
	if receiver.Type != gjson.Number || receiver.Num != math.Trunc(receiver.Num) {
		return Inbound{}, &Error{Code: CodeBadRequest, Msg: "receiver_id must be an integer"}
	}
	receiverID := receiver.Int()
	if receiverID <= 0 {
		return Inbound{}, &Error{Code: CodeBadRequest, Msg: "receiver_id must be positive"}
	}

	content := root.Get("content")
	if !content.Exists() {
		return Inbound{}, &Error{Code: CodeBadRequest, Msg: "content is required"}
	}
	if content.Type != gjson.String {
		return Inbound{}, &Error{Code: CodeBadRequest, Msg: "content must be a string"}
	}

	return Inbound{ReceiverID: receiverID, Content: content.String()}, nil
}
