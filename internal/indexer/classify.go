package indexer

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	indexertypes "github.com/frahmantamala/tonpay/internal/core/datamodel/indexer"
)

// transactionBody is the part of the TonAPI transaction document the
// classifier reads. Lt arrives as a number or, from some proxies, a string.
type transactionBody struct {
	Hash    string          `json:"hash"`
	Lt      json.RawMessage `json:"lt"`
	Success *bool           `json:"success"`
	Status  string          `json:"status"`
	Aborted *bool           `json:"aborted"`
}

// Classify maps one raw HTTP exchange with the indexer onto an Outcome.
// err is the transport error, if any; statusCode and body are ignored when
// it is set.
func Classify(statusCode int, body []byte, err error) indexertypes.Outcome {
	if err != nil {
		return indexertypes.Transient("indexer unreachable: %v", err)
	}

	switch {
	case statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices:
		return classifyBody(body)
	case statusCode == http.StatusNotFound:
		return indexertypes.NotFound()
	case statusCode == http.StatusBadRequest, statusCode == http.StatusUnprocessableEntity:
		return indexertypes.Fatal("indexer rejected request (HTTP %d): %s", statusCode, errorMessage(body))
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return indexertypes.Fatal("indexer rejected credentials (HTTP %d)", statusCode)
	case statusCode == http.StatusTooManyRequests:
		return indexertypes.Transient("indexer rate limited")
	case statusCode >= 500:
		return indexertypes.Transient("indexer unavailable (HTTP %d)", statusCode)
	default:
		return indexertypes.Transient("unexpected indexer response (HTTP %d)", statusCode)
	}
}

// ClassifyInline builds an Outcome from transaction fields carried by a
// push notification, using the same rules as a lookup response.
func ClassifyInline(lt json.RawMessage, success *bool, status string, raw json.RawMessage) indexertypes.Outcome {
	return classifyTransaction(transactionBody{Lt: lt, Success: success, Status: status}, raw)
}

// isExecutionResult reports whether status names a chain execution result
// rather than an account or delivery state.
func isExecutionResult(status string) bool {
	switch strings.ToLower(status) {
	case "success", "failed", "failure", "aborted":
		return true
	}
	return false
}

func classifyBody(body []byte) indexertypes.Outcome {
	var tx transactionBody
	if err := json.Unmarshal(body, &tx); err != nil {
		return indexertypes.Transient("unparseable indexer response: %v", err)
	}
	return classifyTransaction(tx, body)
}

func classifyTransaction(tx transactionBody, raw json.RawMessage) indexertypes.Outcome {
	finalized, ok := parseLt(tx.Lt)
	if !ok {
		return indexertypes.Transient("unparseable lt %q", string(tx.Lt))
	}

	var success bool
	switch {
	case tx.Success != nil:
		success = *tx.Success
	case tx.Status != "":
		// account and delivery states are not a verdict on the transaction
		if !isExecutionResult(tx.Status) {
			return indexertypes.Transient("unrecognised transaction status %q", tx.Status)
		}
		success = strings.EqualFold(tx.Status, "success")
	case finalized:
		// a finalized transaction without any outcome field cannot be judged
		return indexertypes.Transient("indexer response carries no transaction outcome")
	}

	if success && tx.Aborted != nil && *tx.Aborted {
		success = false
	}

	return indexertypes.Found(finalized, success, raw)
}

// parseLt reports whether the logical time marks a finalized transaction.
func parseLt(raw json.RawMessage) (finalized bool, ok bool) {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return false, true
	}
	s := strings.Trim(string(v), `"`)
	if s == "" {
		return false, true
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return false, false
	}
	return n > 0, true
}

func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	if len(body) > 200 {
		return string(body[:200])
	}
	return string(body)
}
