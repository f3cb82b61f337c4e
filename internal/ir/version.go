package ir

// Version constants for the row encoding and the library.
const (
	// FormatVersion is the stored row/mutation encoding version.
	FormatVersion = "1"

	// LibraryVersion is the livecoll version reported by the CLI.
	LibraryVersion = "0.1.0"
)
