package service

import (
	"encoding/base64"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// MaxSafeInteger 可以用 float64 无损表示的最大整数
const MaxSafeInteger = 1<<53 - 1

// SerializeRows 将查询结果转换为可移植的JSON友好结构
func SerializeRows(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = SerializeRow(row)
	}
	return out
}

// SerializeRow 递归转换一行数据
func SerializeRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = SerializeValue(v)
	}
	return out
}

// SerializeValue 转换单个值，结果再次转换保持不变
//   - 安全范围内的整数转为 float64，超出范围转为十进制字符串
//   - pgtype.Numeric 转为 float64，溢出时转为字符串
//   - 时间转为 RFC3339Nano，UUID 转为标准字符串，字节串转为 base64
func SerializeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string, bool:
		return val
	case float64:
		return floatValue(val)
	case float32:
		return floatValue(float64(val))
	case int:
		return intValue(int64(val))
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return intValue(val)
	case uint:
		return uintValue(uint64(val))
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return uintValue(val)
	case pgtype.Numeric:
		return numericValue(val)
	case *pgtype.Numeric:
		if val == nil {
			return nil
		}
		return numericValue(*val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case [16]byte:
		return uuid.UUID(val).String()
	case uuid.UUID:
		return val.String()
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case map[string]any:
		return SerializeRow(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = SerializeValue(item)
		}
		return out
	}
	return serializeReflect(v)
}

// serializeReflect 处理数组列等其它切片与映射类型
func serializeReflect(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = SerializeValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = SerializeValue(iter.Value().Interface())
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return SerializeValue(rv.Elem().Interface())
	}
	return v
}

func intValue(i int64) any {
	if i > MaxSafeInteger || i < -MaxSafeInteger {
		return strconv.FormatInt(i, 10)
	}
	return float64(i)
}

func uintValue(u uint64) any {
	if u > MaxSafeInteger {
		return strconv.FormatUint(u, 10)
	}
	return float64(u)
}

// floatValue NaN 与无穷大无法用JSON表示，转为字符串
func floatValue(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}

func numericValue(n pgtype.Numeric) any {
	if !n.Valid {
		return nil
	}
	if n.NaN {
		return "NaN"
	}
	if n.InfinityModifier != pgtype.Finite {
		if n.InfinityModifier == pgtype.Infinity {
			return "Infinity"
		}
		return "-Infinity"
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid || math.IsInf(f.Float64, 0) {
		return numericString(n)
	}
	return f.Float64
}

// numericString 以十进制文本表示任意精度数值
func numericString(n pgtype.Numeric) string {
	if n.Int == nil {
		return "0"
	}
	digits := n.Int.String()
	negative := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	switch {
	case n.Exp > 0:
		digits += strings.Repeat("0", int(n.Exp))
	case n.Exp < 0:
		scale := int(-n.Exp)
		if len(digits) <= scale {
			digits = strings.Repeat("0", scale-len(digits)+1) + digits
		}
		digits = digits[:len(digits)-scale] + "." + digits[len(digits)-scale:]
	}
	if negative {
		return "-" + digits
	}
	return digits
}
