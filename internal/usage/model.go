package usage

import "time"

// Kind names a quota-consuming action.
type Kind string

const (
	KindSummary  Kind = "summary"
	KindQuestion Kind = "question"
)

// Cardinality tags recorded on each usage event.
const (
	TagSingle = "single"
	TagMulti  = "multi"
)

// Window is the trailing period over which events are counted.
const Window = 24 * time.Hour

// Limits maps each kind to its daily allowance.
type Limits map[Kind]int

// DefaultLimits returns summary=50 and question=100.
func DefaultLimits() Limits {
	return Limits{
		KindSummary:  50,
		KindQuestion: 100,
	}
}

// ParseKind maps user-facing kind names to a Kind.
func ParseKind(raw string) (Kind, bool) {
	switch raw {
	case "summary", "summarize":
		return KindSummary, true
	case "question", "ask":
		return KindQuestion, true
	default:
		return "", false
	}
}

// Decision is the outcome of a quota check or reservation.
type Decision struct {
	Kind      Kind `json:"kind"`
	Allowed   bool `json:"allowed"`
	Count     int  `json:"count"`
	Requested int  `json:"requested"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
}

func decide(kind Kind, count, n, limit int) Decision {
	d := Decision{
		Kind:      kind,
		Allowed:   count+n <= limit,
		Count:     count,
		Requested: n,
		Limit:     limit,
	}
	d.Remaining = limit - count
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	return d
}

// Snapshot reports the current window for every kind.
type Snapshot struct {
	Summaries   int       `json:"summaries"`
	Questions   int       `json:"questions"`
	SummaryCap  int       `json:"summaryLimit"`
	QuestionCap int       `json:"questionLimit"`
	Since       time.Time `json:"since"`
}
