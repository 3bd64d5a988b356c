package ir

// Version constants for the record format and engine.
const (
	// IRVersion is the record/event format version.
	IRVersion = "1"

	// EngineVersion is the actionplan engine version.
	EngineVersion = "0.1.0"
)
