package controllers

import (
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
)

const maxSearchLength = 120

func parseEnumList[T any](values []string, parse func(string) (T, error), field string) ([]T, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]T, 0, len(values))
	for _, raw := range values {
		v, err := parse(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid filter value").WithDetails(map[string]any{"field": field, "value": raw})
		}
		out = append(out, v)
	}
	return out, nil
}
