package botvac

import (
	"bytes"
	"encoding/json"
	"errors"
)

var errInvalidJSON = errors.New("response is not valid json")

// OutcomeKind classifies a response envelope.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeEmpty
	OutcomeDomainError
	OutcomeSoftFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeDomainError:
		return "domain_error"
	case OutcomeSoftFailure:
		return "soft_failure"
	default:
		return "unknown"
	}
}

// Outcome is a response decoded once at the transport boundary.
type Outcome struct {
	Kind    OutcomeKind
	Message string
	Data    json.RawMessage
}

// classify sorts an envelope into empty, domain error (message present),
// soft failure (result "ko") or success.
func classify(env Envelope) Outcome {
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Outcome{Kind: OutcomeEmpty}
	}
	if data[0] != '{' {
		return Outcome{Kind: OutcomeSuccess, Data: env.Data}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Outcome{Kind: OutcomeSuccess, Data: env.Data}
	}
	if raw, ok := fields["message"]; ok {
		return Outcome{Kind: OutcomeDomainError, Message: rawText(raw), Data: env.Data}
	}
	if raw, ok := fields["result"]; ok && rawText(raw) == "ko" {
		return Outcome{Kind: OutcomeSoftFailure, Data: env.Data}
	}
	return Outcome{Kind: OutcomeSuccess, Data: env.Data}
}

// commandError maps a non-success outcome of a robot call to its typed error.
func (o Outcome) commandError() error {
	switch o.Kind {
	case OutcomeEmpty:
		return ErrNoResult
	case OutcomeDomainError:
		return &RemoteError{Message: o.Message}
	case OutcomeSoftFailure:
		return ErrInternalRemote
	default:
		return nil
	}
}

func rawText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(bytes.TrimSpace(raw))
}
