package services

import "testing"

func TestCleanName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"  Pinkpop   Festival ", "Pinkpop Festival"},
		{"Lowlands\n2025", "Lowlands 2025"},
		{"TBA", ""},
		{"n.n.b.", ""},
		{"", ""},
	}

	for _, tt := range tests {
		got := CleanName(tt.raw)
		if got != tt.want {
			t.Errorf("CleanName(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestCleanLocation(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"Walibi Holland", "Biddinghuizen", "Nederland"}, "Walibi Holland, Biddinghuizen, Nederland"},
		{[]string{"Biddinghuizen | Nederland"}, "Biddinghuizen, Nederland"},
		{[]string{"Landgraaf", "landgraaf", ""}, "Landgraaf"},
		{[]string{"TBA", "Paris"}, "Paris"},
		{[]string{"", "  "}, ""},
	}

	for _, tt := range tests {
		got := CleanLocation(tt.parts...)
		if got != tt.want {
			t.Errorf("CleanLocation(%q) = %q; want %q", tt.parts, got, tt.want)
		}
	}
}

func TestIdentityName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Pinkpop  Festival!", "pinkpop festival"},
		{"Fête de la Musique", "fete de la musique"},
		{"Rock-am-Ring", "rock am ring"},
		{"Øya", "øya"},
	}

	for _, tt := range tests {
		got := IdentityName(tt.raw)
		if got != tt.want {
			t.Errorf("IdentityName(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestAbsoluteURL(t *testing.T) {
	if !AbsoluteURL("https://example.com/festival/1") {
		t.Error("https URL should be absolute")
	}
	if AbsoluteURL("/festival/1") {
		t.Error("path-only URL is not absolute")
	}
	if AbsoluteURL("mailto:info@example.com") {
		t.Error("mailto is not an http(s) URL")
	}
}
