// Package intern provides a reference-counted string interning table, used
// for identifiers, path components and macro capture names: values that are
// compared by identity far more often than they are read back out as text.
package intern

import (
	"fmt"
	"strings"
	"sync"
)

// ID is an interned string in a particular [Table]. IDs can be compared very
// cheaply. The zero value of ID always corresponds to the empty string.
type ID int32

// String implements fmt.Stringer. It does not recover the original text;
// use [Table.Value] for that.
func (id ID) String() string {
	if id == 0 {
		return `intern.ID("")`
	}
	return fmt.Sprintf("intern.ID(%d)", int(id))
}

// Table is an interning table: a two-way mapping between strings and the
// small integer [ID]s that identify them.
//
// The zero value of Table is empty and ready to use.
type Table struct {
	mu    sync.RWMutex
	index map[string]ID
	table []string
	refs  []int32
}

// Intern interns s into this table, incrementing its reference count.
// Safe for concurrent use.
func (t *Table) Intern(s string) ID {
	t.mu.RLock()
	id, ok := t.index[s]
	t.mu.RUnlock()
	if ok {
		t.addRef(id)
		return id
	}

	// Intern tables are long-lived; avoid retaining a larger buffer that s
	// might be a slice of.
	s = strings.Clone(s)

	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.index[s]; ok {
		t.refs[id-1]++
		return id
	}

	t.table = append(t.table, s)
	t.refs = append(t.refs, 1)
	id = ID(len(t.table))
	if t.index == nil {
		t.index = make(map[string]ID)
	}
	t.index[s] = id
	return id
}

func (t *Table) addRef(id ID) {
	t.mu.Lock()
	t.refs[id-1]++
	t.mu.Unlock()
}

// Release decrements the reference count of id. The table never actually
// frees an entry's ID slot (IDs must remain stable for the table's
// lifetime), but a refcount that reaches zero means the interned string has
// no more live users, which callers can use to decide whether to warn about
// leaked identifiers in long-running tools.
func (t *Table) Release(id ID) {
	if id == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.refs[id-1] > 0 {
		t.refs[id-1]--
	}
}

// RefCount returns the current reference count for id.
func (t *Table) RefCount(id ID) int {
	if id == 0 {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return int(t.refs[id-1])
}

// Value converts an ID back into its corresponding string. If id was
// created by a different Table, the results are unspecified.
func (t *Table) Value(id ID) string {
	if id == 0 {
		return ""
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.table[int(id)-1]
}
