package tally

import "errors"

var (
	// ErrNotFound is returned when the proposal does not exist.
	ErrNotFound = errors.New("proposal not found")
	// ErrInvalidTitle is returned when a title is empty or too long.
	ErrInvalidTitle = errors.New("invalid title")
	// ErrInvalidDuration is returned when a duration is out of bounds.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrVotingEnded is returned when a vote arrives at or after the end time.
	ErrVotingEnded = errors.New("voting has ended")
	// ErrAlreadyVoted is returned on a second vote of the same address.
	ErrAlreadyVoted = errors.New("already voted")
	// ErrInvalidProof is returned when an encrypted vote is rejected.
	ErrInvalidProof = errors.New("invalid vote proof")
	// ErrVotingNotEnded is returned when decryption is requested too early.
	ErrVotingNotEnded = errors.New("voting has not ended")
	// ErrNotActive is returned when the proposal left the active status.
	ErrNotActive = errors.New("proposal is not active")
	// ErrNotPending is returned when the proposal is not pending decryption.
	ErrNotPending = errors.New("proposal is not pending decryption")
	// ErrInvalidDecryptionProof is returned when decrypted results are rejected.
	ErrInvalidDecryptionProof = errors.New("invalid decryption proof")
)
