package maple

import (
	"testing"
	"time"

	"github.com/ValentinKolb/dCoord/lib/db"
	dbtesting "github.com/ValentinKolb/dCoord/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MapleDB", func() db.KVDB {
		return NewMapleDB(nil)
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "MapleDB", func() db.KVDB {
		return NewMapleDB(nil)
	})
}

func TestCollectRemovesExpiredEntries(t *testing.T) {
	// a long interval keeps the background gc out of the way
	database := NewMapleDB(&DBOptions{NumShards: 4, GCInterval: time.Hour}).(*mapleImpl)
	defer database.Close()

	for i := 0; i < 10; i++ {
		database.Put(string(rune('a'+i)), []byte("v"), 1, 10)
	}
	database.Put("keep", []byte("v"), 1, 0)

	if n := database.collect(); n != 0 {
		t.Errorf("nothing is due yet, collected %d", n)
	}

	database.SetWriteIdx(11)
	if n := database.collect(); n != 10 {
		t.Errorf("expected 10 collected entries, got %d", n)
	}

	info := database.GetInfo()
	if info.Keys != 1 {
		t.Errorf("expected 1 remaining key, got %d", info.Keys)
	}
}

func TestCollectRequeuesRefreshedEntries(t *testing.T) {
	database := NewMapleDB(&DBOptions{NumShards: 1, GCInterval: time.Hour}).(*mapleImpl)
	defer database.Close()

	if _, err := database.AddInt("counter", 1, 1, 10); err != nil {
		t.Fatal(err)
	}
	// the refresh is queued on its own, simulate a stale queue entry
	shard := database.shards[0]
	shard.Mu.Lock()
	shard.Expiry.AddItem("counter", 5)
	shard.Mu.Unlock()

	database.SetWriteIdx(6)
	if n := database.collect(); n != 0 {
		t.Errorf("refreshed entry must survive, collected %d", n)
	}
	shard.Mu.Lock()
	requeued := shard.Expiry.Contains("counter")
	shard.Mu.Unlock()
	if !requeued {
		t.Error("refreshed entry must be requeued")
	}

	database.SetWriteIdx(11)
	if n := database.collect(); n != 1 {
		t.Errorf("expected the counter to be collected, got %d", n)
	}
}

func TestSupportsFeature(t *testing.T) {
	database := NewMapleDB(nil)
	defer database.Close()

	if !database.SupportsFeature(db.FeaturePutIfAbsent | db.FeatureCounter | db.FeatureSave) {
		t.Error("maple must support PutIfAbsent, Counter and Save")
	}
	if len(database.GetInfo().SupportedFeatures) != 9 {
		t.Errorf("unexpected feature list %v", database.GetInfo().SupportedFeatures)
	}
}
