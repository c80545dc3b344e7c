// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"testing"

	"github.com/pdiddy/citegraph/pkg/types"
)

func TestClassifyIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantNS  types.Namespace
		wantVal string
		wantErr bool
	}{
		{"doi simple", "10.1145/1234567.1234568", types.NSDOI, "10.1145/1234567.1234568", false},
		{"doi nature", "10.1038/s41586-024-07487-w", types.NSDOI, "10.1038/s41586-024-07487-w", false},
		{"doi resolver url", "https://doi.org/10.1038/S41586-024-07487-W", types.NSDOI, "10.1038/s41586-024-07487-w", false},
		{"semantic scholar id", "649def34f8be52c8b66281af98ae884c09aef38b", types.NSSemantic, "649def34f8be52c8b66281af98ae884c09aef38b", false},
		{"semantic scholar uppercased", "649DEF34F8BE52C8B66281AF98AE884C09AEF38B", types.NSSemantic, "649def34f8be52c8b66281af98ae884c09aef38b", false},
		{"whitespace trimmed", "  10.1145/1234567.1234568  ", types.NSDOI, "10.1145/1234567.1234568", false},
		{"unknown bare word", "not-an-id", "", "", true},
		{"empty", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := classifyIdentifier(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("classifyIdentifier(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got.Namespace != tt.wantNS {
				t.Errorf("classifyIdentifier(%q) namespace = %v, want %v", tt.input, got.Namespace, tt.wantNS)
			}
			if got.Value != tt.wantVal {
				t.Errorf("classifyIdentifier(%q) value = %q, want %q", tt.input, got.Value, tt.wantVal)
			}
		})
	}
}
