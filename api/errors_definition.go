//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400 or 404 (or even 409), whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX
// If you notice there's a gap (say, error code 4010, 4011 and 4013 exist, 4012 is missing) DON'T fill in the gap,
// that code was used in the past for some error (not anymore) and shouldn't be reused.
// There's no correlation between Code and HTTP Status.
var (
	ErrResourceNotFound       = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody          = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedProposalID    = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed proposal ID")}
	ErrProposalNotFound       = Error{Code: 40007, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("proposal not found")}
	ErrMalformedAddress       = Error{Code: 40008, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed address")}
	ErrVotingEnded            = Error{Code: 40009, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("voting ended")}
	ErrAlreadyVoted           = Error{Code: 40010, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("already voted")}
	ErrVotingNotEnded         = Error{Code: 40011, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("voting not ended")}
	ErrNotActive              = Error{Code: 40012, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("proposal not active")}
	ErrNotPending             = Error{Code: 40013, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("proposal not pending decryption")}
	ErrInvalidProof           = Error{Code: 40014, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid input proof")}
	ErrInvalidDecryptionProof = Error{Code: 40015, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid decryption proof")}
	ErrMalformedParam         = Error{Code: 40016, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrInvalidTitle           = Error{Code: 40017, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid proposal title")}
	ErrInvalidDuration        = Error{Code: 40018, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid proposal duration")}
	ErrInvalidSignature       = Error{Code: 40019, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("invalid signature")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrOracleUnavailable          = Error{Code: 50003, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("decryption oracle unavailable")}
)
