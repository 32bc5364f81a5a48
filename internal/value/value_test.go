package value

import "testing"

func TestTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", Null, false},
		{"true", True, true},
		{"false", False, false},
		{"int_zero", Int(0), false},
		{"int_nonzero", Int(-1), true},
		{"float_zero", Float(0), false},
		{"float_nonzero", Float(0.1), true},
		{"empty_string", Str(""), true},
		{"empty_list", NewList(nil), true},
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("%s: Truthy() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestEqualNumericCrossPromotion(t *testing.T) {
	if !Equal(Int(2), Float(2.0)) {
		t.Error("Int(2) should equal Float(2.0)")
	}
	if Equal(Int(2), Float(2.5)) {
		t.Error("Int(2) should not equal Float(2.5)")
	}
}

func TestEqualScalars(t *testing.T) {
	if !Equal(Null, Null) {
		t.Error("Null should equal Null")
	}
	if !Equal(Str("a"), Str("a")) {
		t.Error("equal strings should be Equal")
	}
	if Equal(Str("a"), Str("b")) {
		t.Error("unequal strings should not be Equal")
	}
	if Equal(True, Int(1)) {
		t.Error("Bool and Int should never be Equal even when both truthy")
	}
}

func TestEqualAggregatesAreByIdentity(t *testing.T) {
	a := NewList([]Value{Int(1)})
	b := NewList([]Value{Int(1)})
	if Equal(a, b) {
		t.Error("two distinct Lists with equal contents should not be Equal")
	}
	if !Equal(a, a) {
		t.Error("a List should equal itself")
	}
}

func TestCompareNumeric(t *testing.T) {
	cmp, ok := Compare(Int(1), Float(2.0))
	if !ok || cmp >= 0 {
		t.Errorf("Compare(1, 2.0) = (%d, %v), want (negative, true)", cmp, ok)
	}
	cmp, ok = Compare(Int(3), Int(3))
	if !ok || cmp != 0 {
		t.Errorf("Compare(3, 3) = (%d, %v), want (0, true)", cmp, ok)
	}
}

func TestCompareStringsLexicographic(t *testing.T) {
	cmp, ok := Compare(Str("abc"), Str("abd"))
	if !ok || cmp >= 0 {
		t.Errorf("Compare(abc, abd) = (%d, %v), want (negative, true)", cmp, ok)
	}
}

func TestCompareUndefinedForMismatchedKinds(t *testing.T) {
	if _, ok := Compare(Str("1"), Int(1)); ok {
		t.Error("Compare(String, Int) should be undefined")
	}
	if _, ok := Compare(NewList(nil), NewList(nil)); ok {
		t.Error("Compare(List, List) should be undefined")
	}
}

func TestAddNumeric(t *testing.T) {
	v, ok := Add(Int(1), Int(2))
	if !ok || v.Kind() != KindInt || v.AsInt() != 3 {
		t.Errorf("Add(1, 2) = %#v, want Int(3)", v)
	}
	v, ok = Add(Int(1), Float(2.5))
	if !ok || v.Kind() != KindFloat || v.AsFloat() != 3.5 {
		t.Errorf("Add(1, 2.5) = %#v, want Float(3.5)", v)
	}
}

func TestAddStrings(t *testing.T) {
	v, ok := Add(Str("foo"), Str("bar"))
	if !ok || v.AsString() != "foobar" {
		t.Errorf("Add(foo, bar) = %#v, want foobar", v)
	}
}

func TestAddListsConcatenatesWithoutMutatingOperands(t *testing.T) {
	a := NewList([]Value{Int(1)})
	b := NewList([]Value{Int(2)})
	sum, ok := Add(a, b)
	if !ok {
		t.Fatal("Add(List, List) should succeed")
	}
	if sum.AsList().Len() != 2 {
		t.Errorf("sum length = %d, want 2", sum.AsList().Len())
	}
	if a.AsList().Len() != 1 || b.AsList().Len() != 1 {
		t.Error("Add must not mutate its operands")
	}
}

func TestAddObjectsMergesWithRightShadowingLeft(t *testing.T) {
	base := NewObject()
	base.AsObject().Set(Str("a"), Int(1))
	base.AsObject().Set(Str("b"), Int(2))
	overlay := NewObject()
	overlay.AsObject().Set(Str("b"), Int(99))

	sum, ok := Add(base, overlay)
	if !ok {
		t.Fatal("Add(Object, Object) should succeed")
	}
	obj := sum.AsObject()
	if v, _ := obj.Get(Str("a")); v.AsInt() != 1 {
		t.Errorf("merged a = %v, want 1", v)
	}
	if v, _ := obj.Get(Str("b")); v.AsInt() != 99 {
		t.Errorf("merged b = %v, want 99 (overlay should shadow base)", v)
	}
}

func TestAddUndefinedAcrossKinds(t *testing.T) {
	if _, ok := Add(Int(1), Str("x")); ok {
		t.Error("Add(Int, String) should be undefined")
	}
}

func TestStringCharAt(t *testing.T) {
	v, ok := StringCharAt("hello", 1)
	if !ok || v.AsString() != "e" {
		t.Errorf("StringCharAt(hello, 1) = %#v, want e", v)
	}
	if _, ok := StringCharAt("hello", 10); ok {
		t.Error("out-of-range index should report ok=false")
	}
	if _, ok := StringCharAt("hello", -1); ok {
		t.Error("negative index should report ok=false")
	}
}

func TestStringCharAtUnicodeScalars(t *testing.T) {
	v, ok := StringCharAt("héllo", 1)
	if !ok || v.AsString() != "é" {
		t.Errorf("StringCharAt indexes by Unicode scalar, got %#v", v)
	}
}

func TestRuneCount(t *testing.T) {
	if RuneCount("hello") != 5 {
		t.Errorf("RuneCount(hello) = %d, want 5", RuneCount("hello"))
	}
	if RuneCount("héllo") != 5 {
		t.Errorf("RuneCount(héllo) = %d, want 5", RuneCount("héllo"))
	}
}

func TestListGetSet(t *testing.T) {
	l := &List{Items: []Value{Int(1), Int(2)}}
	if v, ok := l.Get(0); !ok || v.AsInt() != 1 {
		t.Errorf("Get(0) = %#v, want 1", v)
	}
	if _, ok := l.Get(-1); ok {
		t.Error("Get(-1) should report ok=false")
	}
	if _, ok := l.Get(5); ok {
		t.Error("Get(5) out of range should report ok=false")
	}
	if !l.Set(1, Int(99)) {
		t.Fatal("Set(1, ...) should succeed")
	}
	if v, _ := l.Get(1); v.AsInt() != 99 {
		t.Errorf("after Set, Get(1) = %#v, want 99", v)
	}
	if l.Set(5, Int(0)) {
		t.Error("Set out of range should fail")
	}
}

func TestListAppend(t *testing.T) {
	l := &List{}
	l.Append(Int(1))
	l.Append(Int(2))
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}
	if v, _ := l.Get(1); v.AsInt() != 2 {
		t.Errorf("Get(1) = %#v, want 2", v)
	}
}

func TestObjectSetOverwritesExistingKey(t *testing.T) {
	o := NewObject().AsObject()
	o.Set(Str("a"), Int(1))
	o.Set(Str("a"), Int(2))
	if o.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (overwrite, not append)", o.Len())
	}
	if v, _ := o.Get(Str("a")); v.AsInt() != 2 {
		t.Errorf("Get(a) = %#v, want 2", v)
	}
}

func TestObjectIntAndFloatKeysShareABucket(t *testing.T) {
	o := NewObject().AsObject()
	o.Set(Int(1), Str("via-int"))
	if v, ok := o.Get(Float(1.0)); !ok || v.AsString() != "via-int" {
		t.Errorf("Get(Float(1.0)) = %#v, %v, want via-int, true", v, ok)
	}
}

func TestObjectAggregateKeysHashByIdentity(t *testing.T) {
	o := NewObject().AsObject()
	k1 := NewList([]Value{Int(1)})
	k2 := NewList([]Value{Int(1)})
	o.Set(k1, Str("first"))
	o.Set(k2, Str("second"))
	if o.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (distinct List identities are distinct keys)", o.Len())
	}
	if v, _ := o.Get(k1); v.AsString() != "first" {
		t.Errorf("Get(k1) = %#v, want first", v)
	}
}

func TestObjectGetMiss(t *testing.T) {
	o := NewObject().AsObject()
	if _, ok := o.Get(Str("missing")); ok {
		t.Error("Get on a missing key should report ok=false")
	}
}

func TestObjectKeysPreserveInsertionOrder(t *testing.T) {
	o := NewObject().AsObject()
	o.Set(Str("z"), Int(1))
	o.Set(Str("a"), Int(2))
	o.Set(Str("m"), Int(3))
	keys := o.Keys()
	want := []string{"z", "a", "m"}
	if len(keys) != len(want) {
		t.Fatalf("got %d keys, want %d", len(keys), len(want))
	}
	for i, k := range keys {
		if k.AsString() != want[i] {
			t.Errorf("key[%d] = %q, want %q", i, k.AsString(), want[i])
		}
	}
}

func TestMergeDoesNotMutateOperands(t *testing.T) {
	base := NewObject().AsObject()
	base.Set(Str("a"), Int(1))
	overlay := NewObject().AsObject()
	overlay.Set(Str("a"), Int(2))

	Merge(base, overlay)

	if v, _ := base.Get(Str("a")); v.AsInt() != 1 {
		t.Error("Merge must not mutate base")
	}
	if v, _ := overlay.Get(Str("a")); v.AsInt() != 2 {
		t.Error("Merge must not mutate overlay")
	}
}

func TestUpvalueOpenSharesWrites(t *testing.T) {
	slot := Int(1)
	up := NewOpenUpvalue(&slot)
	if !up.IsOpen() {
		t.Fatal("expected Open")
	}
	up.Set(Int(42))
	if slot.AsInt() != 42 {
		t.Errorf("write through an open Upvalue should reach the stack slot, got %v", slot)
	}
}

func TestUpvalueCloseSnapshotsAndDetaches(t *testing.T) {
	slot := Int(7)
	up := NewOpenUpvalue(&slot)
	up.Close()
	if up.IsOpen() {
		t.Fatal("expected Closed after Close()")
	}
	slot = Int(999) // mutating the original slot must no longer affect the cell
	if got := up.Get(); got.AsInt() != 7 {
		t.Errorf("Get() after Close = %v, want the snapshotted 7", got)
	}
	up.Set(Int(8))
	if got := up.Get(); got.AsInt() != 8 {
		t.Errorf("Set() after Close should update the closed snapshot, got %v", got)
	}
}

func TestRenderScalars(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Null, "null"},
		{True, "true"},
		{False, "false"},
		{Int(42), "42"},
		{Int(-1), "-1"},
		{Float(1.0), "1.0"},
		{Float(1.5), "1.5"},
		{Str("hi"), "hi"},
	}
	for _, c := range cases {
		if got := Render(c.v); got != c.want {
			t.Errorf("Render(%#v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestRenderList(t *testing.T) {
	l := NewList([]Value{Int(1), Str("a"), True})
	if got, want := Render(l), `[1, a, true]`; got != want {
		t.Errorf("Render(list) = %q, want %q", got, want)
	}
}

func TestRenderObjectUnquotesIdentShapedKeys(t *testing.T) {
	o := NewObject().AsObject()
	o.Set(Str("name"), Str("ok"))
	o.Set(Str("not an ident"), Int(1))
	got := Render(FromObject(o))
	want := `{ name: ok, "not an ident": 1 }`
	if got != want {
		t.Errorf("Render(object) = %q, want %q", got, want)
	}
}

func TestRenderFunction(t *testing.T) {
	anon := &Function{Chunk: &Chunk{}}
	if got, want := Render(FromFunction(anon)), "<fn>"; got != want {
		t.Errorf("Render(anonymous fn) = %q, want %q", got, want)
	}
	named := &Function{Chunk: &Chunk{}, Name: "add"}
	if got, want := Render(FromFunction(named)), "<fn add>"; got != want {
		t.Errorf("Render(named fn) = %q, want %q", got, want)
	}
}

func TestRenderCyclicListElidesInsteadOfRecursing(t *testing.T) {
	l := &List{}
	l.Items = []Value{Int(1)}
	cyclic := FromList(l)
	l.Items = append(l.Items, cyclic)
	if got, want := Render(cyclic), "[1, [...]]"; got != want {
		t.Errorf("Render(cyclic list) = %q, want %q", got, want)
	}
}
