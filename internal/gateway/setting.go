package gateway

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Settings come from YAML or from DefaultSetting, so scalar values may arrive
// as any of the types yaml.v3 decodes into.

func settingString(setting map[string]any, key string) (string, error) {
	v, ok := setting[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("setting %q: expected string, got %T", key, v)
	}
	return s, nil
}

func settingBool(setting map[string]any, key string) (bool, error) {
	switch v := setting[key].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("setting %q: %w", key, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("setting %q: expected bool, got %T", key, v)
	}
}

func settingDecimal(setting map[string]any, key string) (decimal.Decimal, error) {
	switch v := setting[key].(type) {
	case nil:
		return decimal.Zero, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("setting %q: %w", key, err)
		}
		return d, nil
	case decimal.Decimal:
		return v, nil
	default:
		return decimal.Zero, fmt.Errorf("setting %q: expected number, got %T", key, v)
	}
}

func settingStrings(setting map[string]any, key string) ([]string, error) {
	switch v := setting[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("setting %q[%d]: expected string, got %T", key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("setting %q: expected list, got %T", key, v)
	}
}
