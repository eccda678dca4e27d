package mstore

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dCoord/lib/clock"
)

// fakeMemcached speaks the subset of the memcached text protocol the store uses.
// Expirations are evaluated against a manual clock.
type fakeMemcached struct {
	mu    sync.Mutex
	items map[string]fakeItem
	clock *clock.Manual
	cas   uint64
	ln    net.Listener
}

type fakeItem struct {
	value    []byte
	flags    uint32
	expireAt time.Time // zero means never
}

func startFakeMemcached(t *testing.T, c *clock.Manual) *fakeMemcached {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	f := &fakeMemcached{items: map[string]fakeItem{}, clock: c, ln: ln}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeMemcached) addr() string { return f.ln.Addr().String() }

func (f *fakeMemcached) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeMemcached) expiry(raw string) time.Time {
	exp, _ := strconv.ParseInt(raw, 10, 64)
	switch {
	case exp == 0:
		return time.Time{}
	case exp > 30*24*60*60:
		return time.Unix(exp, 0)
	default:
		return f.clock.Now().Add(time.Duration(exp) * time.Second)
	}
}

// live returns the item if it exists and is not expired, f.mu must be held
func (f *fakeMemcached) live(key string) (fakeItem, bool) {
	item, ok := f.items[key]
	if !ok {
		return item, false
	}
	if !item.expireAt.IsZero() && !f.clock.Now().Before(item.expireAt) {
		delete(f.items, key)
		return item, false
	}
	return item, true
}

func (f *fakeMemcached) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		f.mu.Lock()
		switch fields[0] {
		case "get", "gets":
			for _, key := range fields[1:] {
				if item, ok := f.live(key); ok {
					f.cas++
					fmt.Fprintf(w, "VALUE %s %d %d %d\r\n%s\r\n", key, item.flags, len(item.value), f.cas, item.value)
				}
			}
			w.WriteString("END\r\n")

		case "set", "add":
			size, _ := strconv.Atoi(fields[4])
			data := make([]byte, size+2)
			if _, err := io.ReadFull(r, data); err != nil {
				f.mu.Unlock()
				return
			}
			flags, _ := strconv.ParseUint(fields[2], 10, 32)
			if _, exists := f.live(fields[1]); exists && fields[0] == "add" {
				w.WriteString("NOT_STORED\r\n")
				break
			}
			f.items[fields[1]] = fakeItem{value: data[:size], flags: uint32(flags), expireAt: f.expiry(fields[3])}
			w.WriteString("STORED\r\n")

		case "delete":
			if _, ok := f.live(fields[1]); !ok {
				w.WriteString("NOT_FOUND\r\n")
				break
			}
			delete(f.items, fields[1])
			w.WriteString("DELETED\r\n")

		case "incr", "decr":
			item, ok := f.live(fields[1])
			if !ok {
				w.WriteString("NOT_FOUND\r\n")
				break
			}
			curr, err := strconv.ParseUint(string(item.value), 10, 64)
			if err != nil {
				w.WriteString("CLIENT_ERROR cannot increment or decrement non-numeric value\r\n")
				break
			}
			delta, _ := strconv.ParseUint(fields[2], 10, 64)
			if fields[0] == "incr" {
				curr += delta
			} else if delta > curr {
				curr = 0
			} else {
				curr -= delta
			}
			item.value = []byte(strconv.FormatUint(curr, 10))
			f.items[fields[1]] = item
			fmt.Fprintf(w, "%d\r\n", curr)

		case "touch":
			item, ok := f.live(fields[1])
			if !ok {
				w.WriteString("NOT_FOUND\r\n")
				break
			}
			item.expireAt = f.expiry(fields[2])
			f.items[fields[1]] = item
			w.WriteString("TOUCHED\r\n")

		case "flush_all":
			f.items = map[string]fakeItem{}
			w.WriteString("OK\r\n")

		default:
			w.WriteString("ERROR\r\n")
		}
		f.mu.Unlock()

		if err := w.Flush(); err != nil {
			return
		}
	}
}
