package service

import (
	"math"
	"math/big"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// TestSerializeValue 测试单值转换
func TestSerializeValue(t *testing.T) {
	id := uuid.MustParse("6f1c2d9e-4b7a-4c1e-9a55-0d3e2f1b8c47")
	ts := time.Date(2024, 3, 15, 9, 30, 0, 120000000, time.UTC)

	tests := []struct {
		name     string
		input    any
		expected any
	}{
		{"空值", nil, nil},
		{"字符串", "hello", "hello"},
		{"布尔值", true, true},
		{"int32转float64", int32(42), float64(42)},
		{"安全范围内的int64", int64(MaxSafeInteger), float64(MaxSafeInteger)},
		{"超出安全范围的int64", int64(MaxSafeInteger + 1), "9007199254740992"},
		{"超出安全范围的负数", int64(-MaxSafeInteger - 10), "-9007199254741001"},
		{"超大uint64", uint64(math.MaxUint64), "18446744073709551615"},
		{"NaN浮点数", math.NaN(), "NaN"},
		{"正无穷", math.Inf(1), "+Inf"},
		{"时间", ts, "2024-03-15T09:30:00.12Z"},
		{"UUID", id, "6f1c2d9e-4b7a-4c1e-9a55-0d3e2f1b8c47"},
		{"字节数组形式的UUID", [16]byte(id), "6f1c2d9e-4b7a-4c1e-9a55-0d3e2f1b8c47"},
		{"字节串", []byte("hi"), "aGk="},
		{"小数", pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true}, 123.45},
		{"无效小数", pgtype.Numeric{}, nil},
		{"NaN小数", pgtype.Numeric{NaN: true, Valid: true}, "NaN"},
		{"负无穷小数", pgtype.Numeric{InfinityModifier: pgtype.NegativeInfinity, Valid: true}, "-Infinity"},
		{"字符串数组", []string{"a", "b"}, []any{"a", "b"}},
		{"整数数组", []int64{1, 2}, []any{float64(1), float64(2)}},
		{"嵌套映射", map[string]any{"n": int64(1), "tags": []any{int16(2)}}, map[string]any{"n": float64(1), "tags": []any{float64(2)}}},
		{"空指针", (*string)(nil), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SerializeValue(tt.input))
		})
	}
}

// TestNumericString 测试超出float64范围的小数文本
func TestNumericString(t *testing.T) {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)

	tests := []struct {
		name     string
		input    pgtype.Numeric
		expected string
	}{
		{"正指数", pgtype.Numeric{Int: big.NewInt(15), Exp: 3, Valid: true}, "15000"},
		{"负指数", pgtype.Numeric{Int: big.NewInt(-505), Exp: -2, Valid: true}, "-5.05"},
		{"补零", pgtype.Numeric{Int: big.NewInt(7), Exp: -3, Valid: true}, "0.007"},
		{"大整数", pgtype.Numeric{Int: huge, Valid: true}, "123456789012345678901234567890"},
		{"空整数部分", pgtype.Numeric{Valid: true}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, numericString(tt.input))
		})
	}
}

// TestSerializeRows 测试按行转换且不修改原始数据
func TestSerializeRows(t *testing.T) {
	rows := []map[string]any{
		{"id": int64(1), "createdAt": time.Unix(0, 0).UTC()},
		{"id": int64(2), "createdAt": nil},
	}

	out := SerializeRows(rows)

	assert.Equal(t, []map[string]any{
		{"id": float64(1), "createdAt": "1970-01-01T00:00:00Z"},
		{"id": float64(2), "createdAt": nil},
	}, out)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Empty(t, SerializeRows(nil))
	assert.NotNil(t, SerializeRows(nil))
}

// serialSample 包装任意取值，gopter 的 Map 不接受 interface 类型的返回值
type serialSample struct {
	value any
}

// TestSerializeIdempotent 属性测试：转换结果再次转换保持不变
func TestSerializeIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	value := gen.OneGenOf(
		gen.Int64().Map(func(v int64) serialSample { return serialSample{v} }),
		gen.UInt64().Map(func(v uint64) serialSample { return serialSample{v} }),
		gen.Float64().Map(func(v float64) serialSample { return serialSample{v} }),
		gen.AnyString().Map(func(v string) serialSample { return serialSample{v} }),
		gen.SliceOf(gen.UInt8()).Map(func(v []uint8) serialSample { return serialSample{v} }),
		gen.Int32Range(-1000, 1000).Map(func(v int32) serialSample {
			return serialSample{pgtype.Numeric{Int: big.NewInt(int64(v)), Exp: -1, Valid: true}}
		}),
	)

	properties.Property("二次转换不变", prop.ForAll(
		func(v serialSample) bool {
			once := SerializeValue(v.value)
			return reflect.DeepEqual(once, SerializeValue(once))
		},
		value,
	))

	properties.TestingRun(t)
}
