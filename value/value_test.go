package value

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruthy(t *testing.T) {
	assert.False(t, None().Truthy())
	assert.False(t, Null().Truthy())
	assert.False(t, Bool(false).Truthy())
	assert.False(t, Int64(0).Truthy())
	assert.False(t, String("").Truthy())
	assert.True(t, String("x").Truthy())
	assert.True(t, Array(Int64(1)).Truthy())
	assert.False(t, Array().Truthy())
}

func TestEqualAcrossNumericKinds(t *testing.T) {
	assert.True(t, Equal(Int64(1), Float64(1.0)))
	assert.True(t, Equal(Int64(1), Decimal(decimal.NewFromInt(1))))
	assert.False(t, Equal(Int64(1), String("1")))
}

func TestCompareKindTagFallback(t *testing.T) {
	assert.Equal(t, -1, Compare(Null(), String("a")))
	assert.Equal(t, 1, Compare(String("a"), Null()))
}

func TestAddStringConcat(t *testing.T) {
	r, err := Add(String("foo"), String("bar"))
	require.NoError(t, err)
	assert.Equal(t, "foobar", r.Str())
}

func TestAddArrayConcat(t *testing.T) {
	r, err := Add(Array(Int64(1)), Array(Int64(2)))
	require.NoError(t, err)
	assert.Equal(t, []Value{Int64(1), Int64(2)}, r.ArrayVal())
}

func TestAddNumericWidening(t *testing.T) {
	r, err := Add(Int64(1), Float64(2.5))
	require.NoError(t, err)
	require.Equal(t, KindFloat64, r.Kind)
	assert.Equal(t, 3.5, r.Float())
}

func TestDivAlwaysFloatsIntegers(t *testing.T) {
	r, err := Div(Int64(5), Int64(2))
	require.NoError(t, err)
	require.Equal(t, KindFloat64, r.Kind)
	assert.Equal(t, 2.5, r.Float())
}

func TestDivByZero(t *testing.T) {
	_, err := Div(Int64(1), Int64(0))
	require.Error(t, err)
}

func TestDatetimeDurationArith(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r, err := Add(Datetime(base), Duration(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, base.Add(24*time.Hour), r.Time())
}

func TestObjectSetOrdersKeys(t *testing.T) {
	o := NewObject()
	o.Set("z", Int64(1))
	o.Set("a", Int64(2))
	assert.Equal(t, []string{"a", "z"}, o.Keys())
}

func TestObjectClone(t *testing.T) {
	o := NewObject()
	o.Set("a", Int64(1))
	c := o.Clone()
	c.Set("b", Int64(2))
	assert.Equal(t, 1, o.Len())
	assert.Equal(t, 2, c.Len())
}

func TestSetValDedup(t *testing.T) {
	s := SetVal(Int64(1), Int64(1), Int64(2))
	assert.Len(t, s.SetItems(), 2)
}

func TestRecordIDString(t *testing.T) {
	rid := RecordIDVal("person", String("tobie"))
	assert.Equal(t, "person:tobie", rid.RID().String())
}

func TestCoerceToFloat(t *testing.T) {
	r, err := CoerceTo(Int64(3), KindFloat64)
	require.NoError(t, err)
	assert.Equal(t, 3.0, r.Float())
}

func TestCoerceToMismatch(t *testing.T) {
	_, err := CoerceTo(Bool(true), KindDatetime)
	require.Error(t, err)
}
