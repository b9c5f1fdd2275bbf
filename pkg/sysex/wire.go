package sysex

import (
	"encoding/json"
	"fmt"

	"github.com/silicakes/deluge-extensions-sub001/pkg/errors"
)

// Every request is a JSON object with a single top-level key naming the
// operation; the reply echoes that key prefixed with '^'.

type PingRequest struct {
	Ping struct{} `json:"ping"`
}

type sessionRequest struct {
	Session sessionBody `json:"session"`
}

type sessionBody struct {
	Tag string `json:"tag,omitempty"`
}

type sessionReply struct {
	SID    int `json:"sid"`
	MidMin int `json:"midMin"`
	MidMax int `json:"midMax"`
}

type closeSessionRequest struct {
	CloseSession struct{} `json:"closeSession"`
}

// UnwrapReply extracts the body of the reply's single top-level key,
// which must equal the request key prefixed with '^'.
func UnwrapReply(data []byte, key string) (json.RawMessage, error) {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return nil, errors.UnexpectedReply(fmt.Sprintf("undecodable reply json: %v", err))
	}
	body, ok := outer["^"+key]
	if !ok {
		for k := range outer {
			return nil, errors.UnexpectedReply(fmt.Sprintf("reply key %q, wanted %q", k, "^"+key))
		}
		return nil, errors.UnexpectedReply("empty reply object")
	}
	return body, nil
}
