// Package store defines the contract the archival engine consumes from the
// active transactional store: lookup by UID, search by kind and creation date,
// containment, catalogs, audit trail, and creation or deletion of records and
// archive stubs.
//
// # Transactions
//
// All writes happen inside RunInTransaction. A transaction either commits
// every change made by its function or none of them, which is what lets the
// archiver export, create a stub and delete the original as one unit.
//
//	err := st.RunInTransaction(ctx, func(tx store.Tx) error {
//	    if err := tx.CreateArchiveItem(ctx, item); err != nil {
//	        return err
//	    }
//	    return tx.Delete(ctx, uid)
//	})
//
// Implementations live in the memory and sqlstore subpackages.
package store
