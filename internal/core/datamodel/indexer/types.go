package indexer

import (
	"encoding/json"
	"fmt"
)

// Kind tags the outcome of a single indexer lookup.
type Kind string

const (
	KindFound     Kind = "found"
	KindNotFound  Kind = "not_found"
	KindTransient Kind = "transient_error"
	KindFatal     Kind = "fatal_error"
)

// Outcome is the normalized result of asking the indexer about one transaction.
// Finalized and Success are only meaningful for KindFound.
type Outcome struct {
	Kind      Kind
	Finalized bool
	Success   bool
	Detail    string
	Raw       json.RawMessage
}

func Found(finalized, success bool, raw json.RawMessage) Outcome {
	return Outcome{Kind: KindFound, Finalized: finalized, Success: success, Raw: raw}
}

func NotFound() Outcome {
	return Outcome{Kind: KindNotFound, Detail: "transaction not indexed yet"}
}

func Transient(format string, args ...any) Outcome {
	return Outcome{Kind: KindTransient, Detail: fmt.Sprintf(format, args...)}
}

func Fatal(format string, args ...any) Outcome {
	return Outcome{Kind: KindFatal, Detail: fmt.Sprintf(format, args...)}
}

// Settled reports whether the outcome is a finalized chain result.
func (o Outcome) Settled() bool {
	return o.Kind == KindFound && o.Finalized
}

func (o Outcome) String() string {
	if o.Kind == KindFound {
		return fmt.Sprintf("found(finalized=%t, success=%t)", o.Finalized, o.Success)
	}
	if o.Detail == "" {
		return string(o.Kind)
	}
	return fmt.Sprintf("%s: %s", o.Kind, o.Detail)
}
