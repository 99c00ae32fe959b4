package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/quiverdata/quiver/internal/errors"
)

// columnFromValues builds a column from dynamically-typed cells (nil means
// null). The column type is inferred from the non-null values; int64 mixed
// with float64 widens to float64. An all-null column becomes float64.
func columnFromValues(name string, values []any, mem memory.Allocator) (*Column, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	var sawInt, sawFloat, sawString, sawBool bool
	for _, v := range values {
		switch v.(type) {
		case nil:
		case int64:
			sawInt = true
		case float64:
			sawFloat = true
		case string:
			sawString = true
		case bool:
			sawBool = true
		default:
			return nil, errors.NewValidation("NewColumn",
				fmt.Sprintf("unsupported value type %T in column %q", v, name))
		}
	}
	if sawString && (sawInt || sawFloat || sawBool) || sawBool && (sawInt || sawFloat) {
		return nil, errors.NewValidation("NewColumn",
			fmt.Sprintf("mixed value types in column %q", name))
	}

	switch {
	case sawString:
		builder := array.NewStringBuilder(mem)
		defer builder.Release()
		for _, v := range values {
			if v == nil {
				builder.AppendNull()
			} else {
				builder.Append(v.(string))
			}
		}
		out := builder.NewArray()
		defer out.Release()
		return NewColumn(name, out), nil
	case sawBool:
		builder := array.NewBooleanBuilder(mem)
		defer builder.Release()
		for _, v := range values {
			if v == nil {
				builder.AppendNull()
			} else {
				builder.Append(v.(bool))
			}
		}
		out := builder.NewArray()
		defer out.Release()
		return NewColumn(name, out), nil
	case sawInt && !sawFloat:
		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		for _, v := range values {
			if v == nil {
				builder.AppendNull()
			} else {
				builder.Append(v.(int64))
			}
		}
		out := builder.NewArray()
		defer out.Release()
		return NewColumn(name, out), nil
	default:
		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		for _, v := range values {
			switch n := v.(type) {
			case nil:
				builder.AppendNull()
			case int64:
				builder.Append(float64(n))
			case float64:
				builder.Append(n)
			}
		}
		out := builder.NewArray()
		defer out.Release()
		return NewColumn(name, out), nil
	}
}
