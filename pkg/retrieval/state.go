package retrieval

// State is the lifecycle state of a Session.
type State int32

const (
	// Idle: ready for a question.
	Idle State = iota

	// AwaitingEmbedding: the question is being embedded.
	AwaitingEmbedding

	// Ranking: the collection is being scored against the question.
	Ranking

	// Generating: ranked chunks were forwarded to the generator (Ask only).
	Generating

	// Failed: the last operation failed. A session passes through Failed
	// on its way back to Idle and is always reusable.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingEmbedding:
		return "awaiting_embedding"
	case Ranking:
		return "ranking"
	case Generating:
		return "generating"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Observer receives every state transition of a session.
type Observer func(from, to State)
