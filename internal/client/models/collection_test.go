package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollection_FindPreservesOrder(t *testing.T) {
	c := NewCollection(
		Record{"id": 1, "status": "open"},
		Record{"id": 2, "status": "closed"},
		Record{"id": 3, "status": "open"},
	)

	got := c.Find("status", "open")
	require.Equal(t, 2, got.Len())

	first, _ := got.Get(0)
	second, _ := got.Get(1)
	require.Equal(t, 1, first["id"])
	require.Equal(t, 3, second["id"])
}

func TestCollection_FindMatchesNumericTypes(t *testing.T) {
	c := NewCollection(
		Record{"id": json.Number("10")},
		Record{"id": float64(11)},
		Record{"id": "12"},
	)

	require.Equal(t, 1, c.Find("id", int64(10)).Len())
	require.Equal(t, 1, c.Find("id", 11).Len())
	require.Equal(t, 1, c.Find("id", "12").Len())
	require.Equal(t, 0, c.Find("id", 13).Len())
}

func TestCollection_FindMissingKey(t *testing.T) {
	c := NewCollection(Record{"a": 1})
	require.Equal(t, 0, c.Find("b", nil).Len())
}

func TestCollection_MergeAppendsWithoutDedup(t *testing.T) {
	a := NewCollection(Record{"id": 1}, Record{"id": 2})
	b := NewCollection(Record{"id": 2}, Record{"id": 3})

	a.Merge(b).Merge(nil)

	require.Equal(t, 4, a.Len())
	var ids []any
	for _, r := range a.Items() {
		ids = append(ids, r["id"])
	}
	require.Equal(t, []any{1, 2, 2, 3}, ids)
}

func TestCollection_MergeIntoNil(t *testing.T) {
	var c *Collection[Record]
	out := c.Merge(NewCollection(Record{"id": 1}))
	require.Equal(t, 1, out.Len())
	require.Equal(t, 0, c.Merge(nil).Len())
}

func TestCollection_GetOutOfRange(t *testing.T) {
	c := NewCollection[Record]()
	_, ok := c.First()
	require.False(t, ok)
	_, ok = c.Get(-1)
	require.False(t, ok)

	var nilc *Collection[Record]
	require.Equal(t, 0, nilc.Len())
	require.Nil(t, nilc.Items())
}

func TestCollection_ItemsIsCopy(t *testing.T) {
	c := NewCollection(Record{"id": 1})
	items := c.Items()
	items[0] = Record{"id": 99}

	first, _ := c.First()
	require.Equal(t, 1, first["id"])
}

func TestCollection_OfModels(t *testing.T) {
	a := NewApiModel("leads", nil)
	b := NewApiModel("leads", nil)
	b.SetID(5)

	c := NewCollection(a, b)
	found := c.Find(FieldID, json.Number("5"))
	require.Equal(t, 1, found.Len())
	m, _ := found.First()
	require.Same(t, b, m)
}

func TestToInt64(t *testing.T) {
	cases := []struct {
		in   any
		want int64
		ok   bool
	}{
		{in: 5, want: 5, ok: true},
		{in: int64(6), want: 6, ok: true},
		{in: float64(7), want: 7, ok: true},
		{in: 7.5, ok: false},
		{in: json.Number("8"), want: 8, ok: true},
		{in: "9", want: 9, ok: true},
		{in: "x", ok: false},
		{in: nil, ok: false},
	}
	for _, tc := range cases {
		got, ok := ToInt64(tc.in)
		require.Equal(t, tc.ok, ok, "%v", tc.in)
		if tc.ok {
			require.Equal(t, tc.want, got)
		}
	}
}

func TestSameValue(t *testing.T) {
	require.True(t, SameValue(json.Number("1.50"), 1.5))
	require.True(t, SameValue(nil, nil))
	require.False(t, SameValue(nil, 0))
	require.True(t, SameValue(true, true))
	require.False(t, SameValue("1", "01"))
	require.True(t, SameValue([]any{"a"}, []any{"a"}))

	require.True(t, SameValue(int64(9007199254740993), json.Number("9007199254740993")))
	require.False(t, SameValue(json.Number("9007199254740993"), json.Number("9007199254740992")))
	require.False(t, SameValue(int64(9007199254740993), json.Number("9007199254740992")))
	require.True(t, SameValue(json.Number("42.0"), int64(42)))
}
