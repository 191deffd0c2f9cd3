// Package result defines the result codes returned by ydb operations.
//
// Codes fall in three bands: [OK], warnings (the operation completed with a
// caveat) and errors (the operation did not complete as requested). Every
// [Code] is itself an error so callers can write
//
//	if errors.Is(err, result.NoEntry) { ... }
//
// and richer failures are reported as [*Error] values carrying a code.
package result
