package bridge

import "time"

// Outcome is the terminal result of one message
type Outcome string

const (
	OutcomeDelivered  Outcome = "delivered"
	OutcomeUnroutable Outcome = "unroutable"
	OutcomeExhausted  Outcome = "exhausted"
	OutcomeFatal      Outcome = "fatal"
	OutcomeStoreError Outcome = "store_error"
	OutcomeAborted    Outcome = "aborted"
)

// Recorder receives pipeline measurements
type Recorder interface {
	RecordOutcome(source, outcome string)
	RecordSendAttempt(target string, err error)
	ObserveDelivery(target string, d time.Duration)
	RecordPollError(side string)
	SetBufferDepth(n int)
	RecordBufferOverflow()
	SetWorkerRunning(worker string, running bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(string, string)          {}
func (nopRecorder) RecordSendAttempt(string, error)       {}
func (nopRecorder) ObserveDelivery(string, time.Duration) {}
func (nopRecorder) RecordPollError(string)                {}
func (nopRecorder) SetBufferDepth(int)                    {}
func (nopRecorder) RecordBufferOverflow()                 {}
func (nopRecorder) SetWorkerRunning(string, bool)         {}
