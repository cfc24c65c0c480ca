// Package record defines the entities held by the active store: samples,
// batches, worksheets, their analyses and containers, the users that act on
// them, and the ArchiveItem stub that replaces a record once it has been
// archived.
package record
