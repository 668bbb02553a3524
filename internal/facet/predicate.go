package facet

import "marketlens/domain/dataframe"

// Matches reports whether rec passes every active facet of selection. A
// record missing a field that an active facet refers to does not match.
func Matches(rec dataframe.Record, selection Selection) bool {
	for facet, accepted := range selection.facets {
		if len(accepted) == 0 {
			continue
		}
		v, ok := rec.Get(facet)
		if !ok {
			return false
		}
		if _, ok := accepted[v]; !ok {
			return false
		}
	}
	return true
}

// Filter returns the records that match selection, in their original order.
// The unrestricted selection returns records itself.
func Filter(records []dataframe.Record, selection Selection) []dataframe.Record {
	if selection.IsEmpty() {
		return records
	}
	out := make([]dataframe.Record, 0, len(records))
	for _, rec := range records {
		if Matches(rec, selection) {
			out = append(out, rec)
		}
	}
	return out
}

// FilterFrame applies Filter to a dataframe, keeping its schema
func FilterFrame(df *dataframe.Dataframe, selection Selection) *dataframe.Dataframe {
	if selection.IsEmpty() {
		return df
	}
	return df.WithRows(Filter(df.Rows(), selection))
}
