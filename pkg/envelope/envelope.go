// Package envelope translates invocation outcomes into the wire envelope.
//
// Every call produces exactly one of
//
//	{"result": <canonical value>}
//	{"error": "<message>"}
package envelope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jdziat/funcgate/pkg/canon"
	"github.com/jdziat/funcgate/pkg/core"
	"github.com/jdziat/funcgate/pkg/security"
)

// Envelope is the response for a single call. The zero value is not valid;
// use Success or Failure.
type Envelope struct {
	Result any
	Error  string

	ok      bool
	outcome core.Outcome
}

// Success wraps a canonical result.
func Success(result any) Envelope {
	return Envelope{Result: result, ok: true, outcome: core.OutcomeOK}
}

// Failure wraps an error message.
func Failure(msg string) Envelope {
	return Envelope{Error: msg, outcome: core.OutcomeExecutionError}
}

func failure(msg string, outcome core.Outcome) Envelope {
	return Envelope{Error: security.SanitizeErrorMessage(msg), outcome: outcome}
}

// OK reports whether the envelope carries a result.
func (e Envelope) OK() bool {
	return e.ok
}

// Outcome classifies the call that produced the envelope.
func (e Envelope) Outcome() core.Outcome {
	if e.outcome == "" {
		if e.ok {
			return core.OutcomeOK
		}
		return core.OutcomeExecutionError
	}
	return e.outcome
}

// MarshalJSON encodes the envelope as a single-key object.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.ok {
		result, err := json.Marshal(e.Result)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		buf.WriteString(`{"result":`)
		buf.Write(result)
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return json.Marshal(struct {
		Error string `json:"error"`
	}{e.Error})
}

// UnmarshalJSON decodes a single-key envelope object. Results decode as
// generic JSON values.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	resultRaw, hasResult := raw["result"]
	errorRaw, hasError := raw["error"]
	switch {
	case hasResult && hasError:
		return errors.New("envelope has both result and error")
	case hasResult:
		var result any
		dec := json.NewDecoder(bytes.NewReader(resultRaw))
		dec.UseNumber()
		if err := dec.Decode(&result); err != nil {
			return err
		}
		*e = Success(result)
		return nil
	case hasError:
		var msg string
		if err := json.Unmarshal(errorRaw, &msg); err != nil {
			return fmt.Errorf("envelope error must be a string: %w", err)
		}
		*e = Failure(msg)
		return nil
	default:
		return errors.New("envelope has neither result nor error")
	}
}

// Build converts the result of an invocation into an envelope. Successful
// results are canonicalized with c, or the default Canonicalizer when c is
// nil. Build never panics.
func Build(result any, err error, c *canon.Canonicalizer) (env Envelope) {
	if err != nil {
		return failure(Message(err), Classify(err))
	}

	defer func() {
		if r := recover(); r != nil {
			env = failure(fmt.Sprintf("failed to serialize result: %v", r), core.OutcomeSerialization)
		}
	}()

	if c == nil {
		c = canon.New()
	}
	value, cerr := c.Canonicalize(result)
	if cerr != nil {
		return failure(cerr.Error(), core.OutcomeSerialization)
	}
	return Success(value)
}

// Message renders err as the envelope error text.
func Message(err error) string {
	var (
		nf      *core.NotFoundError
		argErr  *core.ArgumentError
		execErr *core.ExecutionError
	)
	switch {
	case errors.As(err, &execErr):
		return execErr.Error()
	case errors.As(err, &nf):
		return nf.Error()
	case errors.As(err, &argErr):
		if argErr.Err == nil {
			return "Invalid arguments"
		}
		return "Invalid arguments: " + argErr.Err.Error()
	default:
		return err.Error()
	}
}

// Classify maps an invocation error to its outcome. An ExecutionError is
// always an execution failure, whatever the body's error wraps.
func Classify(err error) core.Outcome {
	var (
		argErr  *core.ArgumentError
		execErr *core.ExecutionError
	)
	switch {
	case err == nil:
		return core.OutcomeOK
	case errors.As(err, &execErr):
		return core.OutcomeExecutionError
	case errors.Is(err, core.ErrNotFound):
		return core.OutcomeNotFound
	case errors.As(err, &argErr):
		return core.OutcomeInvalidArgs
	case errors.Is(err, core.ErrDepthExceeded), errors.Is(err, core.ErrCycleDetected):
		return core.OutcomeSerialization
	case errors.Is(err, context.DeadlineExceeded):
		return core.OutcomeTimeout
	default:
		return core.OutcomeExecutionError
	}
}
