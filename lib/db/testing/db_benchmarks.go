package testing

import (
	"fmt"
	"sync/atomic"
	"testing"
)

// RunKVDBBenchmarks runs the benchmarks of the operations used by the coordination store
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Put", func(b *testing.B) {
		database := factory()
		defer database.Close()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			database.Put(fmt.Sprintf("key-%d", i), []byte("value"), uint64(i), 0)
		}
	})

	b.Run("PutIfAbsent(contended)", func(b *testing.B) {
		database := factory()
		defer database.Close()
		var idx atomic.Uint64
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				i := idx.Add(1)
				if database.PutIfAbsent("lock", []byte("v"), i, 0) {
					database.Delete("lock", i)
				}
			}
		})
	})

	b.Run("AddInt", func(b *testing.B) {
		database := factory()
		defer database.Close()
		var idx atomic.Uint64
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				_, _ = database.AddInt("counter", 1, idx.Add(1), 60_000)
			}
		})
	})

	b.Run("Get", func(b *testing.B) {
		database := factory()
		defer database.Close()
		for i := 0; i < 1000; i++ {
			database.Put(fmt.Sprintf("key-%d", i), []byte("value"), 1, 0)
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			database.Get(fmt.Sprintf("key-%d", i%1000), 1)
		}
	})
}
