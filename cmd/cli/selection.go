package main

import (
	"fmt"

	"github.com/tidwall/gjson"

	"marketlens/domain/dataframe"
	"marketlens/internal/facet"
)

// parseSelection reads a selection such as {"region":["APAC"],"year":[2021]}.
// JSON numbers become numeric values and strings stay strings; a bare
// scalar stands for a one-element list.
func parseSelection(raw string) (facet.Selection, error) {
	sel := facet.NewSelection()
	if raw == "" {
		return sel, nil
	}
	if !gjson.Valid(raw) {
		return sel, fmt.Errorf("--select is not valid JSON")
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return sel, fmt.Errorf("--select must be a JSON object of facet -> values")
	}

	var err error
	doc.ForEach(func(key, value gjson.Result) bool {
		items := []gjson.Result{value}
		if value.IsArray() {
			items = value.Array()
		}
		values := make([]dataframe.Value, 0, len(items))
		for _, item := range items {
			switch item.Type {
			case gjson.Number:
				values = append(values, dataframe.Number(item.Float()))
			case gjson.String:
				values = append(values, dataframe.String(item.Str))
			default:
				err = fmt.Errorf("--select %s: %s is neither a string nor a number", key.Str, item.Raw)
				return false
			}
		}
		sel = sel.With(key.Str, values...)
		return true
	})
	return sel, err
}
