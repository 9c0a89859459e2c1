// Package enum builds the name-to-code lookup tables used to resolve the
// textual protocol and ethertype fields of exported flows.
package enum

import (
	"Go2NetIngest/internal/model"
	"bufio"
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

//go:embed protocols.txt
var protocolRegistry []byte

//go:embed ethertypes.txt
var ethertypeRegistry []byte

// Kind identifies which registry a table was built from.
type Kind int

const (
	KindProtocol Kind = iota
	KindEtherType
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindEtherType:
		return "ethertype"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// maxCode is the largest value each registry may hold.
func (k Kind) maxCode() int64 {
	if k == KindProtocol {
		return 0xFF
	}
	return 0xFFFF
}

var (
	ErrMalformedEntry = errors.New("malformed registry entry")
	ErrDuplicateName  = errors.New("duplicate registry name")
)

// SpecError reports a defect in an embedded registry. It names the offending
// line so the registry can be fixed; it never describes bad runtime input.
type SpecError struct {
	Kind Kind
	Line int
	Text string
	Err  error
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("%s registry line %d %q: %v", e.Kind, e.Line, e.Text, e.Err)
}

func (e *SpecError) Unwrap() error { return e.Err }

// Entry is a single name/code pair.
type Entry struct {
	Name string
	Code model.Code
}

// Table maps case-sensitive names to codes. It is never modified after
// Parse returns, so it may be shared between goroutines.
type Table struct {
	kind    Kind
	byName  map[string]model.Code
	entries []Entry
}

// BuildProtocolTable parses the embedded IANA protocol number registry.
func BuildProtocolTable() (*Table, error) {
	return Parse(KindProtocol, bytes.NewReader(protocolRegistry))
}

// BuildEtherTypeTable parses the embedded ethertype registry.
func BuildEtherTypeTable() (*Table, error) {
	return Parse(KindEtherType, bytes.NewReader(ethertypeRegistry))
}

// MustBuildProtocolTable is like BuildProtocolTable but panics on a registry defect.
func MustBuildProtocolTable() *Table {
	t, err := BuildProtocolTable()
	if err != nil {
		panic(err)
	}
	return t
}

// MustBuildEtherTypeTable is like BuildEtherTypeTable but panics on a registry defect.
func MustBuildEtherTypeTable() *Table {
	t, err := BuildEtherTypeTable()
	if err != nil {
		panic(err)
	}
	return t
}

// Parse reads a registry of "<name> <number>" lines. Numbers may be decimal
// or 0x-prefixed hex. Blank lines and lines starting with '#' are ignored.
// The first defect aborts parsing with a *SpecError.
func Parse(kind Kind, r io.Reader) (*Table, error) {
	t := &Table{
		kind:   kind,
		byName: make(map[string]model.Code),
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, &SpecError{Kind: kind, Line: lineNo, Text: text,
				Err: fmt.Errorf("%w: expected 2 fields, got %d", ErrMalformedEntry, len(fields))}
		}

		code, err := strconv.ParseInt(fields[1], 0, 32)
		if err != nil {
			return nil, &SpecError{Kind: kind, Line: lineNo, Text: text,
				Err: fmt.Errorf("%w: %v", ErrMalformedEntry, err)}
		}
		if code < 0 || code > kind.maxCode() {
			return nil, &SpecError{Kind: kind, Line: lineNo, Text: text,
				Err: fmt.Errorf("%w: code %d outside 0..%d", ErrMalformedEntry, code, kind.maxCode())}
		}

		name := fields[0]
		if _, exists := t.byName[name]; exists {
			return nil, &SpecError{Kind: kind, Line: lineNo, Text: text, Err: ErrDuplicateName}
		}
		t.byName[name] = model.Code(code)
		t.entries = append(t.entries, Entry{Name: name, Code: model.Code(code)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s registry: %w", kind, err)
	}

	sort.SliceStable(t.entries, func(i, j int) bool { return t.entries[i].Code < t.entries[j].Code })
	return t, nil
}

// Kind returns the registry the table was built from.
func (t *Table) Kind() Kind {
	return t.kind
}

// Lookup returns the code registered for name. Matching is exact.
func (t *Table) Lookup(name string) (model.Code, bool) {
	code, ok := t.byName[name]
	return code, ok
}

// Len returns the number of names in the table.
func (t *Table) Len() int {
	return len(t.byName)
}

// Entries returns a copy of the entries ordered by code.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}
