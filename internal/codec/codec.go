// Package codec maps between the gateway's wire messages and Go values.
//
// Encoding reuses a pooled buffer per call to avoid per-message allocation on
// the hot egress path; decoding parses directly from the received byte slice
// with no intermediate string conversion.
package codec

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
)

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// outboundMessage is the wire shape sent to clients. Exactly one of Text or
// Message is populated, selected by Type.
type outboundMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// EncodeTranscript returns the UTF-8 JSON encoding of a transcript message:
// {"type":"transcript","text":"..."}.
func EncodeTranscript(text string) []byte {
	return encode(outboundMessage{Type: "transcript", Text: text})
}

// EncodeError returns the UTF-8 JSON encoding of an error message:
// {"type":"error","message":"..."}.
func EncodeError(message string) []byte {
	return encode(outboundMessage{Type: "error", Message: message})
}

func encode(msg outboundMessage) []byte {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	enc := json.NewEncoder(buf)
	if err := enc.Encode(msg); err != nil {
		// outboundMessage marshals unconditionally; this should not happen.
		return []byte(`{"type":"error","message":"internal encoding failure"}`)
	}

	// Encode appends a trailing newline; outbound frames are single-line,
	// not a terminated stream, so trim it before copying out.
	out := bytes.TrimRight(buf.Bytes(), "\n")
	cp := make([]byte, len(out))
	copy(cp, out)
	return cp
}

// ControlMessage is the decoded form of a client control frame. A zero-value
// ControlMessage (Language == nil, EndRequested == false) is returned for any
// input that is not well-formed control JSON — malformed input is ignored,
// not reported as an error.
type ControlMessage struct {
	// Language is the requested language, or nil if the field was absent.
	Language     *string
	EndRequested bool
}

// rawControlMessage mirrors the wire shape before interpreting the optional
// "type" field. Language is a pointer so that json.Unmarshal leaves it nil
// when the field is absent, distinguishing "absent" from "explicitly empty".
type rawControlMessage struct {
	Type     string  `json:"type"`
	Language *string `json:"language"`
}

// DecodeControl parses a client control frame. Malformed JSON yields the
// zero-value ControlMessage (Language nil, EndRequested false) rather than
// an error, per the gateway's tolerance policy for protocol errors on this
// path.
func DecodeControl(data []byte) ControlMessage {
	var raw rawControlMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ControlMessage{}
	}
	return ControlMessage{
		Language:     raw.Language,
		EndRequested: strings.EqualFold(raw.Type, "end"),
	}
}
