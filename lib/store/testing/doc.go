// Package testing provides RunIStoreTests, the conformance suite for
// store.IStore implementations.
//
//	storetesting.RunIStoreTests(t, "lstore", storetesting.Harness{
//		New:     func() store.IStore { return lstore.NewLocalStore(factory, lstore.WithClock(c)) },
//		Advance: func(d time.Duration) { c.Advance(d) },
//	})
package testing
