package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"partnerledger/core/state"
	"partnerledger/native/access"
	"partnerledger/native/attribution"
	"partnerledger/native/bank"
	"partnerledger/native/claims"
	nativecommon "partnerledger/native/common"
	"partnerledger/native/currency"
	"partnerledger/native/fees"
	"partnerledger/native/projects"
	"partnerledger/native/system/pauses"
	"partnerledger/native/vault"
)

const requestLimit = 1 << 20

func decodeRequest(r *http.Request, out interface{}) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	defer r.Body.Close()

	data, err := io.ReadAll(io.LimitReader(r.Body, requestLimit))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(data) == 0 {
		return errors.New("request body is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Errorf("marshal response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	payload, _ := json.Marshal(map[string]string{"error": message})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// writeLedgerError maps engine errors onto HTTP status codes.
func writeLedgerError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusFor(err), err)
}

var statusTable = []struct {
	status int
	errs   []error
}{
	{http.StatusForbidden, []error{access.ErrUnauthorized}},
	{http.StatusServiceUnavailable, []error{nativecommon.ErrModulePaused}},
	{http.StatusTooManyRequests, []error{currency.ErrOverTheLimit}},
	{http.StatusNotFound, []error{
		vault.ErrProjectNotRegistered,
		attribution.ErrProjectNotRegistered,
		currency.ErrNotAccepted,
		bank.ErrUnknownToken,
		pauses.ErrUnknownModule,
	}},
	{http.StatusConflict, []error{
		state.ErrReentrantCall,
		attribution.ErrProofAlreadyUsed,
		currency.ErrAlreadyAccepted,
		projects.ErrProjectExists,
		pauses.ErrNoChange,
	}},
	{http.StatusUnprocessableEntity, []error{
		vault.ErrInsufficientBudget,
		attribution.ErrInsufficientBudget,
		vault.ErrNothingToClaim,
		vault.ErrNoRemovalApplication,
		vault.ErrOutsideRemovalWindow,
		bank.ErrInsufficientFunds,
		claims.ErrZeroAmount,
		attribution.ErrNoFeeCollector,
	}},
	{http.StatusBadRequest, []error{
		vault.ErrZeroAmount,
		vault.ErrTokenCurrencyNotAccepted,
		attribution.ErrEmptyBatch,
		attribution.ErrInvalidProof,
		claims.ErrEmptyBatch,
		currency.ErrInvalidCurrency,
		currency.ErrInvalidArgument,
		currency.ErrInvalidKind,
		currency.ErrInvalidLimit,
		currency.ErrInvalidAmount,
		currency.ErrAmountOverflow,
		currency.ErrZeroAmount,
		currency.ErrLengthMismatch,
		currency.ErrDuplicateToken,
		currency.ErrKindMismatch,
		fees.ErrInvalidParams,
		fees.ErrZeroAmount,
	}},
}

func statusFor(err error) int {
	for _, row := range statusTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				return row.status
			}
		}
	}
	return http.StatusInternalServerError
}
