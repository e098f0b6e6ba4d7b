package stringpool

import (
	"bytes"
	"math"
	"testing"

	"github.com/FocuswithJustin/msigo/codepage"
)

func TestNewPool(t *testing.T) {
	p := New(codepage.Default)
	if p.LongStringRefs() {
		t.Fatal("new pool should not use long string refs")
	}
	if p.NumStrings() != 0 {
		t.Fatalf("NumStrings = %d, want 0", p.NumStrings())
	}
	if got := p.Incref("Foo"); got != 1 {
		t.Fatalf("Incref(Foo) = %d, want 1", got)
	}
	if p.NumStrings() != 1 {
		t.Fatalf("NumStrings = %d, want 1", p.NumStrings())
	}
	if got := p.Incref("Quux"); got != 2 {
		t.Fatalf("Incref(Quux) = %d, want 2", got)
	}
	if got := p.Incref("Foo"); got != 1 {
		t.Fatalf("second Incref(Foo) = %d, want 1", got)
	}
	if p.NumStrings() != 2 {
		t.Fatalf("NumStrings = %d, want 2", p.NumStrings())
	}
	if p.Get(1) != "Foo" {
		t.Fatalf("Get(1) = %q, want Foo", p.Get(1))
	}
	if p.Refcount(1) != 2 {
		t.Fatalf("Refcount(1) = %d, want 2", p.Refcount(1))
	}
	if p.Get(2) != "Quux" {
		t.Fatalf("Get(2) = %q, want Quux", p.Get(2))
	}
	if p.Refcount(2) != 1 {
		t.Fatalf("Refcount(2) = %d, want 1", p.Refcount(2))
	}
}

func TestBuildFromPool(t *testing.T) {
	pool := []byte("\xe9\xfd\x00\x00\x03\x00\x02\x00\x04\x00\x07\x00")
	data := []byte("FooQuux")
	b, err := ReadFromPool(bytes.NewReader(pool))
	if err != nil {
		t.Fatalf("ReadFromPool: %v", err)
	}
	p, err := b.BuildFromData(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("BuildFromData: %v", err)
	}
	if p.CodePage() != codepage.Utf8 {
		t.Fatalf("CodePage = %v, want Utf8", p.CodePage())
	}
	if p.LongStringRefs() {
		t.Fatal("should not use long string refs")
	}
	if p.NumStrings() != 2 {
		t.Fatalf("NumStrings = %d, want 2", p.NumStrings())
	}
	if p.Get(1) != "Foo" || p.Refcount(1) != 2 {
		t.Fatalf("slot 1 = (%q, %d), want (Foo, 2)", p.Get(1), p.Refcount(1))
	}
	if p.Get(2) != "Quux" || p.Refcount(2) != 7 {
		t.Fatalf("slot 2 = (%q, %d), want (Quux, 7)", p.Get(2), p.Refcount(2))
	}
}

func TestWritePool(t *testing.T) {
	p := New(codepage.Windows1252)
	p.Incref("Foo")
	p.Incref("Quux")
	p.Incref("Foo")

	var poolOut bytes.Buffer
	if err := p.WritePool(&poolOut); err != nil {
		t.Fatalf("WritePool: %v", err)
	}
	want := []byte("\xe4\x04\x00\x00\x03\x00\x02\x00\x04\x00\x01\x00")
	if !bytes.Equal(poolOut.Bytes(), want) {
		t.Fatalf("WritePool = %x, want %x", poolOut.Bytes(), want)
	}

	var dataOut bytes.Buffer
	if err := p.WriteData(&dataOut); err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	if dataOut.String() != "FooQuux" {
		t.Fatalf("WriteData = %q, want FooQuux", dataOut.String())
	}
}

func TestLongStringRefsHeaderBit(t *testing.T) {
	pool := []byte("\xe4\x04\x00\x80\x03\x00\x02\x00\x04\x00\x07\x00")
	data := []byte("FooQuux")
	b, err := ReadFromPool(bytes.NewReader(pool))
	if err != nil {
		t.Fatalf("ReadFromPool: %v", err)
	}
	p, err := b.BuildFromData(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("BuildFromData: %v", err)
	}
	if p.CodePage() != codepage.Windows1252 {
		t.Fatalf("CodePage = %v, want Windows1252", p.CodePage())
	}
	if !p.LongStringRefs() {
		t.Fatal("expected long string refs")
	}
	if p.NumStrings() != 2 {
		t.Fatalf("NumStrings = %d, want 2", p.NumStrings())
	}
}

func TestRepeatedStringAcrossSlots(t *testing.T) {
	pool := []byte("\xe9\xfd\x00\x00\x03\x00\x02\x00\x03\x00\x07\x00")
	data := []byte("FooFoo")
	b, err := ReadFromPool(bytes.NewReader(pool))
	if err != nil {
		t.Fatalf("ReadFromPool: %v", err)
	}
	p, err := b.BuildFromData(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("BuildFromData: %v", err)
	}
	if p.NumStrings() != 2 {
		t.Fatalf("NumStrings = %d, want 2", p.NumStrings())
	}
	if p.Get(1) != "Foo" || p.Refcount(1) != 2 {
		t.Fatalf("slot 1 = (%q, %d)", p.Get(1), p.Refcount(1))
	}
	if p.Get(2) != "Foo" || p.Refcount(2) != 7 {
		t.Fatalf("slot 2 = (%q, %d)", p.Get(2), p.Refcount(2))
	}
}

func TestMaxRefcountStartsFreshEntry(t *testing.T) {
	pool := []byte("\xe9\xfd\x00\x00\x06\x00\xfe\xff")
	data := []byte("Foobar")
	b, err := ReadFromPool(bytes.NewReader(pool))
	if err != nil {
		t.Fatalf("ReadFromPool: %v", err)
	}
	p, err := b.BuildFromData(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("BuildFromData: %v", err)
	}
	if p.NumStrings() != 1 {
		t.Fatalf("NumStrings = %d, want 1", p.NumStrings())
	}
	if p.Refcount(1) != math.MaxUint16-1 {
		t.Fatalf("Refcount(1) = %d, want %d", p.Refcount(1), math.MaxUint16-1)
	}
	if got := p.Incref("Foobar"); got != 1 {
		t.Fatalf("Incref at cap = %d, want 1 (still within uint16 range)", got)
	}
	if p.Refcount(1) != math.MaxUint16 {
		t.Fatalf("Refcount(1) = %d, want %d", p.Refcount(1), math.MaxUint16)
	}
	if got := p.Incref("Foobar"); got != 2 {
		t.Fatalf("Incref past cap = %d, want new slot 2", got)
	}
	if p.Refcount(2) != 1 {
		t.Fatalf("Refcount(2) = %d, want 1", p.Refcount(2))
	}
}

func TestReuseRetiredHole(t *testing.T) {
	p := New(codepage.Default)
	p.Incref("Foo")
	p.Incref("Bar")
	if p.NumStrings() != 2 {
		t.Fatalf("NumStrings = %d, want 2", p.NumStrings())
	}
	if err := p.Decref(1); err != nil {
		t.Fatalf("Decref: %v", err)
	}
	if p.Refcount(1) != 0 {
		t.Fatalf("Refcount(1) = %d, want 0", p.Refcount(1))
	}
	if p.Get(1) != "" {
		t.Fatalf("Get(1) = %q, want empty", p.Get(1))
	}
	if p.NumStrings() != 2 {
		t.Fatalf("NumStrings = %d, want 2 (holes are not compacted implicitly)", p.NumStrings())
	}
	if got := p.Incref("Quux"); got != 1 {
		t.Fatalf("Incref(Quux) reusing hole = %d, want 1", got)
	}
	if p.Get(1) != "Quux" {
		t.Fatalf("Get(1) = %q, want Quux", p.Get(1))
	}
}

func TestCompactDropsHolesAndRemaps(t *testing.T) {
	p := New(codepage.Default)
	p.Incref("A")
	p.Incref("B")
	p.Incref("C")
	if err := p.Decref(2); err != nil {
		t.Fatalf("Decref: %v", err)
	}
	mapping := p.Compact()
	if p.NumStrings() != 2 {
		t.Fatalf("NumStrings after Compact = %d, want 2", p.NumStrings())
	}
	if mapping[1] != 1 || mapping[2] != 0 || mapping[3] != 2 {
		t.Fatalf("mapping = %v, want {1:1, 2:0, 3:2}", mapping)
	}
	if p.Get(1) != "A" || p.Get(2) != "C" {
		t.Fatalf("post-compact contents = (%q, %q), want (A, C)", p.Get(1), p.Get(2))
	}
}

func TestInvalidCodepageRejected(t *testing.T) {
	pool := []byte("\x40\xe2\x01\x00\x06\x00\x01\x00")
	if _, err := ReadFromPool(bytes.NewReader(pool)); err == nil {
		t.Fatal("expected an error for an unrecognized codepage id")
	}
}
