package types

const (
	// MaxTitleLength is the maximum number of characters of a proposal title.
	MaxTitleLength = 100
	// MinDurationMinutes is the minimum voting period of a proposal.
	MinDurationMinutes = 1
	// MaxDurationMinutes is the maximum voting period of a proposal (30 days).
	MaxDurationMinutes = 43200
	// VotersTreeMaxLevels is the maximum number of levels in the voters merkle tree.
	VotersTreeMaxLevels = 160
	// VotersKeyMaxLen is the maximum length of a voters tree key in bytes.
	VotersKeyMaxLen = VotersTreeMaxLevels / 8
)
