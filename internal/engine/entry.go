package engine

// FiscalCodeEntry is one row of a batch run, ready for UI display.
type FiscalCodeEntry struct {
	// UID is a unique identifier (hash) used for stability in lists.
	UID string

	// Name is the display name (Formatted Name or "Given Family").
	Name string

	// Input is what was extracted from the card.
	Input PersonInput

	// FiscalCode is empty when Err is set.
	FiscalCode string

	// Err explains why the card could not be encoded.
	Err error
}

// BatchResult is the outcome of Generator.RunBatch.
type BatchResult struct {
	ID      string
	Entries []FiscalCodeEntry
	Failed  int
}
