// Package cellmgr guards the lifecycle of a cell with a reference counter and a status flag.
//
// Every request that touches a cell increments the cell's reference counter before
// it starts and decrements it when it is done. A cell may only be deleted once
// nobody references it. While a bulk deletion runs, the status flag of the cell is
// StatusBulkDeletion and new requests are turned away.
//
// Both values are stored as decimal counters in a store.IStore under the keys
// cell-refcount:<cellID> and cell-status:<cellID>. A missing reference counter is
// reported as -1, a missing status as StatusNormal.
//
// Usage Example:
//
//	cm := cellmgr.NewCellManager(store, cellmgr.DefaultOptions())
//
//	leave, err := cm.Enter(cellID)
//	if err != nil {
//	    // errs.ErrCellBulkDeletion
//	}
//	defer leave()
//
//	// delete a cell
//	err = cm.BulkDelete(ctx, cellID, func() error { ... })
package cellmgr
