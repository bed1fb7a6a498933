// Package seeders provides a registry of database seed functions.
//
// Usage (define a seeder in any file in this package):
//
//	func init() {
//	    seeders.Register("menu", seedMenu)
//	}
//
// Then run via CLI: foodie seed [name...]
package seeders

import (
	"context"
	"fmt"
	"io"
	"sync"

	"gorm.io/gorm"
)

// SeederFunc is the signature for a seed function. Seeders must be safe to
// run more than once.
type SeederFunc func(ctx context.Context, db *gorm.DB) error

type seederEntry struct {
	name string
	fn   SeederFunc
}

var (
	mu      sync.Mutex
	entries []seederEntry
)

// Register adds a seeder to the global registry.
// Call this from init() in your seeder files.
func Register(name string, fn SeederFunc) {
	mu.Lock()
	defer mu.Unlock()
	entries = append(entries, seederEntry{name: name, fn: fn})
}

// Names lists the registered seeders in run order.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}

// Run executes the named seeders, or all of them when names is empty, in
// registration order. It stops on the first error.
func Run(ctx context.Context, db *gorm.DB, out io.Writer, names ...string) error {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	mu.Lock()
	current := append([]seederEntry(nil), entries...)
	mu.Unlock()

	ran := 0
	for _, e := range current {
		if len(want) > 0 && !want[e.name] {
			continue
		}
		fmt.Fprintf(out, "  • Running seeder: %s … ", e.name)
		if err := e.fn(ctx, db); err != nil {
			fmt.Fprintln(out, "FAILED")
			return fmt.Errorf("seeder %q: %w", e.name, err)
		}
		fmt.Fprintln(out, "done")
		ran++
		delete(want, e.name)
	}
	for n := range want {
		return fmt.Errorf("seeder %q is not registered", n)
	}
	if ran == 0 {
		fmt.Fprintln(out, "  (no seeders registered)")
	}
	return nil
}
