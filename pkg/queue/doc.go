// Package queue provides the deferred task queue the chunked archive
// scheduler submits its work to.
//
// A Queue stores Tasks ordered by priority (highest first) and age (oldest
// first). Workers of a Pool take the next task, run the handler registered
// for its name and report the outcome: Done removes or completes the task,
// Fail puts it back until it has used up its attempts.
//
// Two implementations are provided:
//
//   - Memory keeps tasks in process memory. Tasks are lost on restart.
//   - SQLite persists tasks with modernc.org/sqlite, so workers may run in a
//     separate process from the submitter and pending work survives restarts.
//
// Unique tasks are rejected with ErrDuplicate while another task with the
// same key is pending. Ghost tasks are removed once done instead of being
// kept as completed.
package queue
