package columnar

import "strconv"

// InferType picks the narrowest type that every non-empty sample parses as,
// trying Int64, then Float64, then Bool and falling back to String.
func InferType(samples []string) ColumnType {
	allInt := true
	allFloat := true
	allBool := true
	seen := false

	for _, val := range samples {
		// Skip empty values
		if val == "" {
			continue
		}
		seen = true

		if allInt {
			if _, err := strconv.ParseInt(val, 10, 64); err != nil {
				allInt = false
			}
		}

		if allFloat && !allInt {
			if _, err := strconv.ParseFloat(val, 64); err != nil {
				allFloat = false
			}
		}

		if allBool {
			switch val {
			case "true", "false", "yes", "no":
			default:
				allBool = false
			}
		}

		if !allInt && !allFloat && !allBool {
			return ColumnTypeString
		}
	}

	switch {
	case !seen:
		return ColumnTypeString
	case allInt:
		return ColumnTypeInt
	case allFloat:
		return ColumnTypeFloat
	case allBool:
		return ColumnTypeBool
	}
	return ColumnTypeString
}

// InferSchema infers one type per column from row-oriented string samples
func InferSchema(names []string, rows [][]string) *Schema {
	schema := &Schema{Fields: make([]FieldSchema, len(names))}
	samples := make([]string, 0, len(rows))
	for i, name := range names {
		samples = samples[:0]
		for _, row := range rows {
			if i < len(row) {
				samples = append(samples, row[i])
			}
		}
		schema.Fields[i] = FieldSchema{Name: name, Type: InferType(samples)}
	}
	return schema
}

// ParseValue converts a textual field into the Go value a column of the
// given type appends. Empty fields become the type's zero value.
func ParseValue(colType ColumnType, field string) (interface{}, error) {
	switch colType {
	case ColumnTypeInt:
		if field == "" {
			return int64(0), nil
		}
		return strconv.ParseInt(field, 10, 64)
	case ColumnTypeFloat:
		if field == "" {
			return float64(0), nil
		}
		return strconv.ParseFloat(field, 64)
	case ColumnTypeBool:
		switch field {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no", "":
			return false, nil
		}
		return nil, strconv.ErrSyntax
	case ColumnTypeBytes:
		return []byte(field), nil
	default:
		// String and DateTime columns parse text themselves
		return field, nil
	}
}
