// Package archive retires records that have outlived the retention period
// from the active store into a cold archive.
//
// # Eligibility
//
// A record is eligible when archiving is active (the archive base path is
// usable), its year under the configured date criterion is at or before
// the retention threshold, and the workflow allows its archive transition.
// The guard registered on the workflow additionally requires every
// dependent (retests, secondaries and partitions of a sample, the samples
// of a batch or worksheet) to be allowed as well.
//
// # Archiving one record
//
// Archive runs the following steps in one store transaction:
//
//  1. re-check the guard
//  2. archive the dependents, recursively
//  3. mark the record and its contents for archiving, which also stops
//     audit tracking
//  4. export the hierarchy below {year}/{week}/{parent path}/
//  5. create the searchable stub (ArchiveItem)
//  6. uncatalog and delete the hierarchy
//
// A failing step aborts the transaction, so the record stays in the active
// store without a stub and is picked up again by the next pass. Failures
// are reported as *StepError naming the step.
//
// # Scheduling
//
// ArchiveAll sweeps every candidate synchronously. Chunked submits the
// candidates to a queue.Queue and processes them from worker tasks, one
// record (or one chunk) per task, each task re-submitting the remainder.
package archive
