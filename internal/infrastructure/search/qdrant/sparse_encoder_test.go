package qdrant

import "testing"

func TestEncodeSparseQueryDeterministic(t *testing.T) {
	v1 := encodeSparseQuery("yield strength of A790 S32205")
	v2 := encodeSparseQuery("yield strength of A790 S32205")
	if len(v1.Indices) != len(v2.Indices) || len(v1.Values) != len(v2.Values) {
		t.Fatalf("vector sizes mismatch: v1=%d/%d v2=%d/%d", len(v1.Indices), len(v1.Values), len(v2.Indices), len(v2.Values))
	}
	for i := range v1.Indices {
		if v1.Indices[i] != v2.Indices[i] {
			t.Fatalf("indices mismatch at %d: %d vs %d", i, v1.Indices[i], v2.Indices[i])
		}
		if v1.Values[i] != v2.Values[i] {
			t.Fatalf("values mismatch at %d: %f vs %f", i, v1.Values[i], v2.Values[i])
		}
	}
}

func TestEncodeSparseQuerySortsIndices(t *testing.T) {
	v := encodeSparseQuery("tensile elongation hardness impact")
	if len(v.Indices) == 0 {
		t.Fatalf("expected non-empty sparse vector")
	}
	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i-1] > v.Indices[i] {
			t.Fatalf("indices not sorted at %d: %d > %d", i, v.Indices[i-1], v.Indices[i])
		}
	}
}

func TestEncodeSparseQueryEmptyNoiseInput(t *testing.T) {
	v := encodeSparseQuery("___---!!!")
	if len(v.Indices) != 0 || len(v.Values) != 0 {
		t.Fatalf("expected empty sparse vector, got %+v", v)
	}
}

func TestEncodeSparseDocumentBoostsFilenameTokens(t *testing.T) {
	plain := encodeSparseDocument("chromium content", "notes.txt")
	boosted := encodeSparseDocument("chromium content", "chromium.pdf")

	idx := hashToken("chromium")
	value := func(v sparseVector) float32 {
		for i, candidate := range v.Indices {
			if candidate == idx {
				return v.Values[i]
			}
		}
		return 0
	}
	if value(boosted) <= value(plain) {
		t.Fatalf("filename token weight %f should exceed body-only weight %f", value(boosted), value(plain))
	}
}

func TestTokenizeKeepsSpecCodes(t *testing.T) {
	tokens := tokenize("ASTM A790/A790M-24 S32205")
	foundCode := false
	foundUNS := false
	for _, tok := range tokens {
		if tok == "a790" {
			foundCode = true
		}
		if tok == "s32205" {
			foundUNS = true
		}
	}
	if !foundCode || !foundUNS {
		t.Fatalf("expected a790 and s32205 tokens, got %v", tokens)
	}
}

func TestTokenizeFusesSpacedDesignations(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ASTM A 790", "a790"},
		{"grade a-790 pipe", "a790"},
		{"API 5 CT", "5"}, // only letter-then-number fuses; "5 CT" stays split
	}
	for _, tc := range cases {
		tokens := tokenize(tc.in)
		found := false
		for _, tok := range tokens {
			if tok == tc.want {
				found = true
			}
		}
		if !found {
			t.Fatalf("tokenize(%q) = %v, expected token %q", tc.in, tokens, tc.want)
		}
	}

	// The fused form must line up with the solid spelling so prose
	// chunks match code-bearing queries.
	spaced := tokenize("yield per A 790")
	solid := tokenize("yield per A790")
	if len(spaced) != len(solid) {
		t.Fatalf("spaced and solid spellings tokenize differently: %v vs %v", spaced, solid)
	}
	for i := range spaced {
		if spaced[i] != solid[i] {
			t.Fatalf("token %d differs: %q vs %q", i, spaced[i], solid[i])
		}
	}
}

func TestEncodeSparseDocumentWeightsUnitTokens(t *testing.T) {
	v := encodeSparseDocument("tensile 65 ksi minimum elongation", "table.pdf")
	value := func(token string) float32 {
		idx := hashToken(token)
		for i, candidate := range v.Indices {
			if candidate == idx {
				return v.Values[i]
			}
		}
		return 0
	}
	if value("ksi") <= value("tensile") {
		t.Fatalf("unit token weight %f should exceed prose token weight %f", value("ksi"), value("tensile"))
	}
}
