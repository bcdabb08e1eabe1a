package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// MalformedProfileError reports a batch element that could not be read as a
// profile. The element is skipped; the rest of the batch is unaffected.
type MalformedProfileError struct {
	Index  int
	Reason string
}

func (e *MalformedProfileError) Error() string {
	return fmt.Sprintf("malformed profile at index %d: %s", e.Index, e.Reason)
}

// ParseBatch decodes a JSON array of profile objects. A document that is not
// a JSON array fails as a whole; bad elements are reported individually.
// Chunks refer to their profile by id alone, so an element without an id, or
// repeating an earlier element's id, is malformed.
func ParseBatch(data []byte) ([]Record, []*MalformedProfileError, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, nil, fmt.Errorf("decoding profile batch: %w", err)
	}

	records := make([]Record, 0, len(elems))
	seen := make(map[string]int, len(elems))
	var bad []*MalformedProfileError
	for i, raw := range elems {
		rec, reason := parseRecord(raw)
		if reason == "" {
			if first, dup := seen[rec.ID]; dup {
				reason = fmt.Sprintf("duplicate id %q (first at index %d)", rec.ID, first)
			}
		}
		if reason != "" {
			bad = append(bad, &MalformedProfileError{Index: i, Reason: reason})
			continue
		}
		seen[rec.ID] = i
		records = append(records, rec)
	}
	return records, bad, nil
}

func parseRecord(raw json.RawMessage) (Record, string) {
	obj, ok := decodeObject(raw)
	if !ok {
		return Record{}, "not an object"
	}

	rec := Record{
		ID:         field(obj, "id"),
		Name:       field(obj, "name"),
		Headline:   field(obj, "headline"),
		Location:   field(obj, "location"),
		About:      field(obj, "about"),
		ProfilePic: field(obj, "profile_pic"),
	}

	if rec.ID == Unknown {
		return Record{}, "missing id"
	}

	exps, ok := objects(obj["experiences"])
	if !ok {
		return Record{}, "experiences is not an array of objects"
	}
	for _, e := range exps {
		rec.Experiences = append(rec.Experiences, Experience{
			Title:       field(e, "title"),
			Company:     field(e, "company"),
			WorkType:    field(e, "work_type"),
			Location:    field(e, "location"),
			StartDate:   field(e, "start_date"),
			EndDate:     field(e, "end_date"),
			Description: field(e, "description"),
		})
	}

	edus, ok := objects(obj["educations"])
	if !ok {
		return Record{}, "educations is not an array of objects"
	}
	for _, e := range edus {
		rec.Educations = append(rec.Educations, Education{
			School:      field(e, "school"),
			Degree:      field(e, "degree"),
			Major:       field(e, "major"),
			StartDate:   field(e, "start_date"),
			EndDate:     field(e, "end_date"),
			Description: field(e, "description"),
		})
	}
	return rec, ""
}

func decodeObject(raw json.RawMessage) (map[string]any, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	return obj, true
}

// objects accepts an absent or null value as an empty list.
func objects(v any) ([]map[string]any, bool) {
	if v == nil {
		return nil, true
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		out = append(out, m)
	}
	return out, true
}

// field renders a scalar as text, substituting Unknown for missing, null and
// blank values.
func field(obj map[string]any, key string) string {
	var s string
	switch v := obj[key].(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	case bool:
		s = strconv.FormatBool(v)
	case nil:
	default:
		b, err := json.Marshal(v)
		if err == nil {
			s = string(b)
		}
	}
	return orUnknown(s)
}
