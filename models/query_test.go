package models

import "testing"

func TestCacheKey_StructurallyEqualQueriesMatch(t *testing.T) {
	q1 := &Query{Kind: ByReferenceAndID, Reference: "REF123456", IDNumber: "8001015009087"}
	q2 := &Query{Kind: ByReferenceAndID, Reference: "REF123456", IDNumber: "8001015009087"}

	if q1.CacheKey() != q2.CacheKey() {
		t.Errorf("structurally equal queries produced different keys: %s vs %s", q1.CacheKey(), q2.CacheKey())
	}
}

func TestCacheKey_DistinctQueriesNeverCollide(t *testing.T) {
	queries := []*Query{
		{Kind: ByReferenceAndID, Reference: "REF123456", IDNumber: "8001015009087"},
		{Kind: ByReferenceAndID, Reference: "REF123456", IDNumber: "8001015009088"},
		{Kind: ByReferenceAndID, Reference: "REF123457", IDNumber: "8001015009087"},
		{Kind: BySerialAndReference, Serial: "REF123456", Reference: "8001015009087"},
		{Kind: ByIDAndSerial, IDNumber: "REF123456", Serial: "8001015009087"},
		// Same concatenation, different value boundaries.
		{Kind: ByReferenceAndID, Reference: "REF12", IDNumber: "34568001015009087"},
		{Kind: ByReferenceAndID, Reference: "REF|123", IDNumber: "456"},
		{Kind: ByReferenceAndID, Reference: "REF", IDNumber: "123|456"},
	}

	seen := make(map[string]int)
	for i, q := range queries {
		key := q.CacheKey()
		if prev, dup := seen[key]; dup {
			t.Errorf("queries %d and %d collided on key %s", prev, i, key)
		}
		seen[key] = i
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	q := &Query{Kind: ByIDAndSerial, IDNumber: "8001015009087", Serial: "SN-0042"}
	if q.CacheKey() != q.CacheKey() {
		t.Error("repeated CacheKey calls on the same query disagree")
	}
}

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{"reference and id", Query{Kind: ByReferenceAndID, Reference: "REF1", IDNumber: "ID1"}, false},
		{"serial and reference", Query{Kind: BySerialAndReference, Serial: "SN1", Reference: "REF1"}, false},
		{"id and serial", Query{Kind: ByIDAndSerial, IDNumber: "ID1", Serial: "SN1"}, false},
		{"unknown kind", Query{Kind: "bogus", Reference: "REF1", IDNumber: "ID1"}, true},
		{"missing second field", Query{Kind: ByReferenceAndID, Reference: "REF1"}, true},
		{"missing first field", Query{Kind: BySerialAndReference, Reference: "REF1"}, true},
		{"third field populated", Query{Kind: ByReferenceAndID, Reference: "REF1", IDNumber: "ID1", Serial: "SN1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				le, ok := err.(*LookupError)
				if !ok {
					t.Fatalf("Validate() returned %T, want *LookupError", err)
				}
				if le.Code != ErrCodeInvalidInput {
					t.Errorf("Validate() code = %s, want %s", le.Code, ErrCodeInvalidInput)
				}
			}
		})
	}
}

func TestQuery_Values(t *testing.T) {
	tests := []struct {
		name          string
		query         Query
		first, second string
	}{
		{"reference and id", Query{Kind: ByReferenceAndID, Reference: "REF1", IDNumber: "ID1"}, "REF1", "ID1"},
		{"serial and reference", Query{Kind: BySerialAndReference, Serial: "SN1", Reference: "REF1"}, "SN1", "REF1"},
		{"id and serial", Query{Kind: ByIDAndSerial, IDNumber: "ID1", Serial: "SN1"}, "ID1", "SN1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v1, v2 := tt.query.Values()
			if v1 != tt.first || v2 != tt.second {
				t.Errorf("Values() = (%q, %q), want (%q, %q)", v1, v2, tt.first, tt.second)
			}
		})
	}
}

func TestSearchRequest_Query(t *testing.T) {
	tests := []struct {
		name     string
		req      SearchRequest
		wantKind QueryKind
		wantErr  bool
	}{
		{"reference and id", SearchRequest{Reference: "REF1", IDNumber: "ID1"}, ByReferenceAndID, false},
		{"serial and reference", SearchRequest{Serial: "SN1", Reference: "REF1"}, BySerialAndReference, false},
		{"id and serial", SearchRequest{IDNumber: "ID1", Serial: "SN1"}, ByIDAndSerial, false},
		{"all three", SearchRequest{Reference: "REF1", IDNumber: "ID1", Serial: "SN1"}, "", true},
		{"only one", SearchRequest{Reference: "REF1"}, "", true},
		{"empty", SearchRequest{}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := tt.req.Query()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Query() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && q.Kind != tt.wantKind {
				t.Errorf("Query() kind = %s, want %s", q.Kind, tt.wantKind)
			}
		})
	}
}
