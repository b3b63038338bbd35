package taxonomy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Node struct {
	Path     string `yaml:"path" json:"path"`
	Label    string `yaml:"label" json:"label"`
	Children []Node `yaml:"children,omitempty" json:"children,omitempty"`
}

type Catalog struct {
	Categories []Node `yaml:"categories" json:"categories"`
}

// Load reads a category taxonomy from a YAML file. An empty path yields the
// built in catalog.
func Load(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.Categories) == 0 {
		return Catalog{}, fmt.Errorf("category taxonomy empty")
	}
	return cat, nil
}

// Label resolves a display label for a category path. Unknown paths fall back
// to a title cased last segment.
func (c Catalog) Label(path string) string {
	for _, node := range c.flatten() {
		if node.Path == path {
			return node.Label
		}
	}
	segments := strings.Split(path, "/")
	last := segments[len(segments)-1]
	if last == "" {
		return path
	}
	words := strings.Split(strings.ReplaceAll(last, "-", " "), " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// Contains reports whether the path appears anywhere in the catalog.
func (c Catalog) Contains(path string) bool {
	for _, node := range c.flatten() {
		if node.Path == path {
			return true
		}
	}
	return false
}

// AutomationPaths returns every path, parents and children alike, in catalog
// order. This is the set eligible for niche bootstrap.
func (c Catalog) AutomationPaths() []string {
	nodes := c.flatten()
	out := make([]string, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, node.Path)
	}
	return out
}

// LeafPaths returns child paths where present, otherwise the top level path.
func (c Catalog) LeafPaths() []string {
	var out []string
	for _, node := range c.Categories {
		if len(node.Children) == 0 {
			out = append(out, node.Path)
			continue
		}
		for _, child := range node.Children {
			out = append(out, child.Path)
		}
	}
	return out
}

// DefaultKeyword derives a search keyword from a category path.
func DefaultKeyword(path string) string {
	segments := strings.Split(path, "/")
	last := segments[len(segments)-1]
	return strings.ReplaceAll(last, "-", " ")
}

func (c Catalog) flatten() []Node {
	var out []Node
	for _, node := range c.Categories {
		out = append(out, node)
		out = append(out, node.Children...)
	}
	return out
}

func DefaultCatalog() Catalog {
	return Catalog{Categories: []Node{
		{
			Path:  "electronics",
			Label: "Electronics",
			Children: []Node{
				{Path: "electronics/apple-products", Label: "Apple Products"},
				{Path: "electronics/camera", Label: "Camera"},
				{Path: "electronics/car-vehicle-electronics", Label: "Car & Vehicle Electronics"},
				{Path: "electronics/cell-phone-accessories", Label: "Cell Phone Accessories"},
				{Path: "electronics/cell-phone-chargers-power-adapters", Label: "Cell Phone Chargers & Power Adapters"},
				{Path: "electronics/computers-accessories", Label: "Computers & Accessories"},
				{Path: "electronics/computers-tablets", Label: "Computers & Tablets"},
				{Path: "electronics/earbuds-accessories", Label: "Earbuds & Accessories"},
				{Path: "electronics/headphones", Label: "Headphones"},
				{Path: "electronics/health-monitor", Label: "Health Monitor"},
				{Path: "electronics/musical-instruments", Label: "Musical Instruments"},
				{Path: "electronics/portable-power-station", Label: "Portable Power Station"},
				{Path: "electronics/portable-speakers", Label: "Portable Speakers"},
				{Path: "electronics/projector", Label: "Projector"},
				{Path: "electronics/robot-vacuum-cleaner", Label: "Robot Vacuum Cleaner"},
				{Path: "electronics/smart-home", Label: "Smart Home"},
				{Path: "electronics/smartwatches", Label: "Smartwatches"},
				{Path: "electronics/tools-home-improvement", Label: "Tools & Home Improvement"},
				{Path: "electronics/tv", Label: "TV"},
				{Path: "electronics/video-game-consoles-accessories", Label: "Video Game Consoles & Accessories"},
				{Path: "electronics/virtual-reality", Label: "Virtual Reality"},
			},
		},
		{
			Path:  "lifestyle",
			Label: "Lifestyle",
			Children: []Node{
				{Path: "lifestyle/fashion", Label: "Fashion"},
				{Path: "lifestyle/furniture", Label: "Furniture"},
			},
		},
		{
			Path:     "pet-supplies",
			Label:    "Pet Supplies",
			Children: []Node{{Path: "pet-supplies/dog", Label: "Dog"}},
		},
		{Path: "toys-games", Label: "Toys & Games"},
		{Path: "travel", Label: "Travel"},
	}}
}
