package taxonomy

import "testing"

func TestLabelKnownPath(t *testing.T) {
	cat := DefaultCatalog()
	if got := cat.Label("electronics/headphones"); got != "Headphones" {
		t.Fatalf("got %q", got)
	}
	if got := cat.Label("toys-games"); got != "Toys & Games" {
		t.Fatalf("got %q", got)
	}
}

func TestLabelFallbackTitleCase(t *testing.T) {
	cat := DefaultCatalog()
	if got := cat.Label("outdoors/camping-gear"); got != "Camping Gear" {
		t.Fatalf("got %q", got)
	}
}

func TestContains(t *testing.T) {
	cat := DefaultCatalog()
	if !cat.Contains("pet-supplies/dog") {
		t.Fatal("expected pet-supplies/dog in catalog")
	}
	if cat.Contains("pet-supplies/cat") {
		t.Fatal("did not expect pet-supplies/cat")
	}
}

func TestLeafPaths(t *testing.T) {
	cat := DefaultCatalog()
	leaves := cat.LeafPaths()
	for _, leaf := range leaves {
		if leaf == "electronics" {
			t.Fatal("parent with children should not be a leaf")
		}
	}
	found := false
	for _, leaf := range leaves {
		if leaf == "travel" {
			found = true
		}
	}
	if !found {
		t.Fatal("childless top level path should be a leaf")
	}
}

func TestDefaultKeyword(t *testing.T) {
	if got := DefaultKeyword("electronics/robot-vacuum-cleaner"); got != "robot vacuum cleaner" {
		t.Fatalf("got %q", got)
	}
	if got := DefaultKeyword("travel"); got != "travel" {
		t.Fatalf("got %q", got)
	}
}
