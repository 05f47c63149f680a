// Package nvstore wraps the analog retention registers that survive deep
// sleep and keeps the outgoing security frame counter in them.
//
// # Record Layout
//
// The frame counter record is one flag byte and four counter bytes (little
// endian). The flag is FlagValid (0x5A) after Save and FlagCleared (0x00)
// after Take. Save writes the flag first, then the counter bytes. Take
// clears the flag before reading, so a record is consumed at most once.
package nvstore
