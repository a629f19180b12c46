package models

// SearchRequest is the payload for POST /api/v1/search.
//
// Exactly two of the three fields must be populated; the pair determines
// the query variant. Sending all three (or fewer than two) is rejected.
type SearchRequest struct {
	// Reference is the firearm reference number (e.g. "REF123456").
	Reference string `json:"reference,omitempty"`

	// IDNumber is the 13-digit identity number of the licence holder.
	IDNumber string `json:"id_number,omitempty"`

	// Serial is the firearm serial number.
	Serial string `json:"serial,omitempty"`
}

// Query infers the variant from the populated pair and returns a validated
// Query. It fails with INVALID_INPUT when the populated fields do not form
// exactly one of the three known pairs.
func (r *SearchRequest) Query() (*Query, error) {
	var q *Query
	switch {
	case r.Reference != "" && r.IDNumber != "" && r.Serial == "":
		q = &Query{Kind: ByReferenceAndID, Reference: r.Reference, IDNumber: r.IDNumber}
	case r.Serial != "" && r.Reference != "" && r.IDNumber == "":
		q = &Query{Kind: BySerialAndReference, Serial: r.Serial, Reference: r.Reference}
	case r.IDNumber != "" && r.Serial != "" && r.Reference == "":
		q = &Query{Kind: ByIDAndSerial, IDNumber: r.IDNumber, Serial: r.Serial}
	default:
		return nil, NewLookupError(ErrCodeInvalidInput,
			"provide exactly two of: reference, id_number, serial", nil)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}
