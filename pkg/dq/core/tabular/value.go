package tabular

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// NullText is how a missing value renders as text.
const NullText = "<NA>"

// IsNull reports whether v is a missing value. NaN counts as missing.
func IsNull(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	case *string:
		return x == nil
	case *int64:
		return x == nil
	case *float64:
		return x == nil
	case *time.Time:
		return x == nil
	case *apd.Decimal:
		return x == nil || x.Form == apd.NaN || x.Form == apd.NaNSignaling
	}
	return false
}

// Normalize converts driver values into the small set of types tables hold:
// nil, bool, int64, float64, *apd.Decimal, string and time.Time.
func Normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case *int64:
		if x == nil {
			return nil
		}
		return *x
	case *float64:
		if x == nil {
			return nil
		}
		return *x
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	case *apd.Decimal:
		if x == nil {
			return nil
		}
		return x
	case apd.Decimal:
		d := new(apd.Decimal)
		d.Set(&x)
		return d
	}
	return v
}

// ToFloat returns the numeric value of v. Numeric strings are accepted.
func ToFloat(v interface{}) (float64, bool) {
	switch x := Normalize(v).(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, !math.IsNaN(x)
	case *apd.Decimal:
		f, err := x.Float64()
		return f, err == nil && !math.IsNaN(f)
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func isNumeric(v interface{}) bool {
	switch v.(type) {
	case int64, float64, *apd.Decimal:
		return true
	}
	return false
}

// toDecimal converts a numeric value to a decimal. Floats convert from their shortest
// rendering, the same digits Key uses.
func toDecimal(v interface{}) (*apd.Decimal, bool) {
	switch x := v.(type) {
	case int64:
		return apd.New(x, 0), true
	case float64:
		d, err := new(apd.Decimal).SetFloat64(x)
		return d, err == nil
	case *apd.Decimal:
		return x, true
	}
	return nil, false
}

// decimalText renders d without trailing zeros in plain notation, so 10.50 prints as 10.5.
func decimalText(d *apd.Decimal) string {
	if d.IsZero() {
		return "0"
	}
	reduced, _ := new(apd.Decimal).Reduce(d)
	return reduced.Text('f')
}

// floatText renders f in plain notation. Whole floats print without a fraction.
func floatText(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Text renders v the way comparisons by text see it. Whole floats and decimals print
// without a fraction so 10, 10.0 and DECIMAL 10.00 render the same.
func Text(v interface{}) string {
	v = Normalize(v)
	if IsNull(v) {
		return NullText
	}
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return floatText(x)
	case *apd.Decimal:
		return decimalText(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		return x.Format("2006-01-02 15:04:05.999999999")
	}
	return fmt.Sprint(v)
}

// Key is the hashable identity of v used by grouping, joins and duplicate detection.
// Numbers key by their exact decimal value, so int64 values never collide and
// 10, 10.0 and DECIMAL 10.00 share a key.
func Key(v interface{}) string {
	v = Normalize(v)
	if IsNull(v) {
		return "\x00null"
	}
	switch x := v.(type) {
	case int64:
		return "n:" + strconv.FormatInt(x, 10)
	case float64:
		return "n:" + floatText(x)
	case *apd.Decimal:
		return "n:" + decimalText(x)
	case string:
		return "s:" + x
	case bool:
		return "b:" + strconv.FormatBool(x)
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	}
	return "v:" + fmt.Sprint(v)
}

// Equal reports whether a and b hold the same value. Two nulls are equal.
func Equal(a, b interface{}) bool {
	return Key(a) == Key(b)
}

// Compare orders two non-null values. Numbers order numerically, times chronologically
// and everything else by text.
func Compare(a, b interface{}) int {
	a, b = Normalize(a), Normalize(b)
	if isNumeric(a) && isNumeric(b) {
		return compareNumbers(a, b)
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(Text(a), Text(b))
}

func compareNumbers(a, b interface{}) int {
	ia, aInt := a.(int64)
	ib, bInt := b.(int64)
	if aInt && bInt {
		switch {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		}
		return 0
	}
	_, aDec := a.(*apd.Decimal)
	_, bDec := b.(*apd.Decimal)
	if aDec || bDec || aInt || bInt {
		da, okA := toDecimal(a)
		db, okB := toDecimal(b)
		if okA && okB {
			return da.Cmp(db)
		}
	}
	fa, _ := ToFloat(a)
	fb, _ := ToFloat(b)
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	}
	return 0
}

func rowKey(values []interface{}) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte('\x1f')
		}
		sb.WriteString(Key(v))
	}
	return sb.String()
}
