package dlq

import (
	"eventide/pkg/models"
)

// FailedEnvelope is published when dispatching an event's rule action fails.
// retryCount travels with the event across retry-loop cycles via the
// "_retryCount" payload field, and is restated here at enqueue time.
// Timestamp is epoch milliseconds, matching the wire format of every other
// DLQ envelope shape.
type FailedEnvelope struct {
	OriginalEvent models.IncomingEvent `json:"originalEvent"`
	Error         string               `json:"error"`
	RetryCount    int                  `json:"retryCount"`
	Timestamp     int64                `json:"timestamp"`
}

// RawEnvelope is published when a message on the inbound topic could not be
// parsed into an IncomingEvent at all. It always starts at retryCount 0, but
// the retry loop treats any raw envelope as immediately terminal since there
// is no well-formed event to retry.
type RawEnvelope struct {
	RawMessage string `json:"rawMessage"`
	Error      string `json:"error"`
	RetryCount int    `json:"retryCount"`
	Timestamp  int64  `json:"timestamp"`
}

// TerminalEnvelope is the parked form published to the dead topic once an
// event's retry budget is exhausted or its DLQ envelope is unprocessable.
type TerminalEnvelope struct {
	OriginalDLQMessage map[string]interface{} `json:"originalDlqMessage"`
	Reason             string                 `json:"reason"`
	Timestamp          int64                  `json:"timestamp"`
}
