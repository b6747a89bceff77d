package domain

// RawRecord is an untyped record as decoded by an ingestion adapter
// (spreadsheet row or API response object), keyed by canonical field
// name. Nothing past the validator handles RawRecords.
type RawRecord map[string]any

// Field returns the named value when present and non-nil.
func (r RawRecord) Field(name string) (any, bool) {
	v, ok := r[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
