package codec

import (
	"encoding/json"
	"testing"
)

func TestEncodeTranscript(t *testing.T) {
	got := EncodeTranscript("hello world")
	var decoded map[string]string
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v (%s)", err, got)
	}
	if decoded["type"] != "transcript" || decoded["text"] != "hello world" {
		t.Errorf("decoded = %v, want type=transcript text=%q", decoded, "hello world")
	}
	if bytesContainNewline(got) {
		t.Error("encoded message must be single-line")
	}
}

func TestEncodeError(t *testing.T) {
	got := EncodeError("boom")
	var decoded map[string]string
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["type"] != "error" || decoded["message"] != "boom" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestDecodeControlLanguageAndEnd(t *testing.T) {
	msg := DecodeControl([]byte(`{"language":"en","type":"END"}`))
	if msg.Language == nil || *msg.Language != "en" {
		t.Errorf("Language = %v, want \"en\"", msg.Language)
	}
	if !msg.EndRequested {
		t.Error("EndRequested = false, want true (case-insensitive match)")
	}
}

func TestDecodeControlMissingFieldsAreAbsent(t *testing.T) {
	msg := DecodeControl([]byte(`{}`))
	if msg.Language != nil {
		t.Errorf("Language = %v, want nil for absent field", msg.Language)
	}
	if msg.EndRequested {
		t.Error("EndRequested = true, want false")
	}
}

func TestDecodeControlUnknownFieldsIgnored(t *testing.T) {
	msg := DecodeControl([]byte(`{"language":"fr","bogus":123,"nested":{"x":1}}`))
	if msg.Language == nil || *msg.Language != "fr" {
		t.Errorf("Language = %v, want \"fr\"", msg.Language)
	}
}

func TestDecodeControlMalformedJSONIsIgnored(t *testing.T) {
	for _, input := range []string{`not json`, `{"language":`, ``, `[1,2,3]`} {
		msg := DecodeControl([]byte(input))
		if msg.Language != nil || msg.EndRequested {
			t.Errorf("input %q: got %+v, want zero value", input, msg)
		}
	}
}

func bytesContainNewline(b []byte) bool {
	for _, c := range b {
		if c == '\n' {
			return true
		}
	}
	return false
}
