package longpoll

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Envelope is one decoded subscribe response: the batch of published messages
// and the stream cursor the next poll resumes from.
type Envelope struct {
	Messages  []json.RawMessage
	Timetoken int64
}

// ParseEnvelope decodes the two-element [messages, timetoken] array that
// makes up every subscribe response body. Messages stay opaque; decryption is
// somebody else's job.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var outer []json.RawMessage
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, &EnvelopeError{Reason: err.Error()}
	}

	if len(outer) < 2 {
		return nil, &EnvelopeError{Reason: fmt.Sprintf("expected [messages, timetoken] but got %d elements", len(outer))}
	}

	var messages []json.RawMessage
	if err := json.Unmarshal(outer[0], &messages); err != nil {
		return nil, &EnvelopeError{Reason: fmt.Sprintf("messages element: %s", err)}
	}

	timetoken, err := parseTimetoken(outer[1])
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Messages:  messages,
		Timetoken: timetoken,
	}, nil
}

// The timetoken arrives as a JSON string on current servers and as a bare
// number on older ones; both must coerce to an integer.
func parseTimetoken(raw json.RawMessage) (int64, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		timetoken, err := strconv.ParseInt(asString, 10, 64)
		if err != nil {
			return 0, &EnvelopeError{Reason: fmt.Sprintf("timetoken %q is not an integer", asString)}
		}
		return timetoken, nil
	}

	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber, nil
	}

	return 0, &EnvelopeError{Reason: fmt.Sprintf("timetoken element %s is neither string nor number", raw)}
}
