package metrics

// MessageOutcome labels what happened to a replication envelope.
type MessageOutcome string

const (
	MessageSent      MessageOutcome = "sent"
	MessageCoalesced MessageOutcome = "coalesced"
	MessageReceived  MessageOutcome = "received"
	MessageDropped   MessageOutcome = "dropped"
)

// MergeResult labels the result of applying an incoming record.
type MergeResult string

const (
	MergeInserted  MergeResult = "inserted"
	MergeApplied   MergeResult = "applied"
	MergeDiscarded MergeResult = "discarded"
	MergeDeleted   MergeResult = "deleted"
	MergeIgnored   MergeResult = "ignored"
)

// Recorder defines the observability hooks used by the device. All methods
// must be cheap and safe to call from the control loop.
type Recorder interface {
	IncMessage(msgType string, outcome MessageOutcome)
	IncMerge(result MergeResult)
	IncRuntimeTransition(action, origin string)
	IncStoreFailure(op string)
	SetPeerReachable(reachable bool)
	SetRunningTimers(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) IncMessage(string, MessageOutcome)   {}
func (NoopRecorder) IncMerge(MergeResult)                {}
func (NoopRecorder) IncRuntimeTransition(string, string) {}
func (NoopRecorder) IncStoreFailure(string)              {}
func (NoopRecorder) SetPeerReachable(bool)               {}
func (NoopRecorder) SetRunningTimers(int)                {}

// OrNoop returns r, or NoopRecorder if r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}

var _ Recorder = NoopRecorder{}
