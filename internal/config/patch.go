package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/aretw0/covidash/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// DecodePatch turns loosely typed input (query values, JSON objects, MCP
// tool arguments) into an InputPatch. Dates use the YYYY-MM-DD layout and
// scalars are converted weakly, so "true" and "1" both enable the
// population adjustment.
func DecodePatch(input map[string]any) (domain.InputPatch, error) {
	var p domain.InputPatch
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			dateHook,
			metricHook,
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &p,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(input); err != nil {
		return p, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return p, nil
}

var timeType = reflect.TypeOf(time.Time{})

func dateHook(from, to reflect.Type, data any) (any, error) {
	if to != timeType || from.Kind() != reflect.String {
		return data, nil
	}
	return domain.ParseDate(data.(string))
}

func metricHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(domain.Metric("")) || from.Kind() != reflect.String {
		return data, nil
	}
	return domain.ParseMetric(data.(string))
}
