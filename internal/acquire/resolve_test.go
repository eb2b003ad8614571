// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType IdentifierType
		wantNorm string
	}{
		{"bigg core", "e_coli_core", TypeBiGG, "e_coli_core"},
		{"bigg genome scale", "iML1515", TypeBiGG, "iML1515"},
		{"whitespace trimmed", "  iMM904  ", TypeBiGG, "iMM904"},
		{"url https", "https://example.com/models/yeast-GEM.yml", TypeURL, "https://example.com/models/yeast-GEM.yml"},
		{"url http", "http://example.com/toy.json", TypeURL, "http://example.com/toy.json"},
		{"leading digit", "1515", TypeUnknown, "1515"},
		{"path", "models/toy.json", TypeUnknown, "models/toy.json"},
		{"empty", "", TypeUnknown, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotNorm := Classify(tt.input)
			if gotType != tt.wantType {
				t.Errorf("Classify(%q) type = %v, want %v", tt.input, gotType, tt.wantType)
			}
			if gotNorm != tt.wantNorm {
				t.Errorf("Classify(%q) norm = %q, want %q", tt.input, gotNorm, tt.wantNorm)
			}
		})
	}
}

func TestSlugAndExt(t *testing.T) {
	tests := []struct {
		name     string
		idType   IdentifierType
		norm     string
		wantSlug string
		wantExt  string
	}{
		{"bigg", TypeBiGG, "e_coli_core", "e_coli_core", ".json"},
		{"url yaml", TypeURL, "https://example.com/yeast-GEM.yml", "yeast-GEM", ".yml"},
		{"url json upper", TypeURL, "https://example.com/Toy.JSON", "Toy", ".json"},
		{"url sbml falls back to json", TypeURL, "https://example.com/model.xml", "model", ".json"},
		{"url no filename", TypeURL, "https://example.com/", urlHashSlug("https://example.com/"), ".json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slug(tt.idType, tt.norm); got != tt.wantSlug {
				t.Errorf("Slug(%v, %q) = %q, want %q", tt.idType, tt.norm, got, tt.wantSlug)
			}
			if got := Ext(tt.idType, tt.norm); got != tt.wantExt {
				t.Errorf("Ext(%v, %q) = %q, want %q", tt.idType, tt.norm, got, tt.wantExt)
			}
		})
	}
}

func TestModelURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		idType  IdentifierType
		norm    string
		wantURL string
	}{
		{"bigg", "http://bigg.ucsd.edu", TypeBiGG, "e_coli_core", "http://bigg.ucsd.edu/static/models/e_coli_core.json"},
		{"bigg trailing slash", "http://bigg.ucsd.edu/", TypeBiGG, "iML1515", "http://bigg.ucsd.edu/static/models/iML1515.json"},
		{"url passthrough", "http://bigg.ucsd.edu", TypeURL, "https://example.com/toy.json", "https://example.com/toy.json"},
		{"unknown", "http://bigg.ucsd.edu", TypeUnknown, "x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ModelURL(tt.base, tt.idType, tt.norm); got != tt.wantURL {
				t.Errorf("ModelURL(%q, %v, %q) = %q, want %q", tt.base, tt.idType, tt.norm, got, tt.wantURL)
			}
		})
	}
}
