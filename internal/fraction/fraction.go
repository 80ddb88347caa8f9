// Package fraction maps Renovasjonsportal waste fraction names to stable
// entity slugs and icons.
package fraction

import "strings"

// Info describes how a waste fraction is presented
type Info struct {
	Slug string
	Icon string
}

// DefaultIcon is used for fractions without a dedicated icon
const DefaultIcon = "mdi:calendar-check"

// known holds the fractions ReMidt and the other portal municipalities use
var known = map[string]Info{
	"Restavfall":                 {Slug: "restavfall", Icon: "mdi:trash-can"},
	"Matavfall":                  {Slug: "matavfall", Icon: "mdi:food-apple"},
	"Papir":                      {Slug: "papir", Icon: "mdi:package-variant"},
	"Papp og papir":              {Slug: "papp_og_papir", Icon: "mdi:package-variant"},
	"Plastemballasje":            {Slug: "plastemballasje", Icon: "mdi:recycle"},
	"Glass- og metallemballasje": {Slug: "glass_og_metallemballasje", Icon: "mdi:bottle-soda"},
	"Hageavfall":                 {Slug: "hageavfall", Icon: "mdi:leaf"},
	"Farlig avfall":              {Slug: "farlig_avfall", Icon: "mdi:biohazard"},
}

// Lookup returns presentation info for a fraction name. Unknown fractions
// get a derived slug and the default icon so they still produce entities.
func Lookup(name string) Info {
	if info, ok := known[name]; ok {
		return info
	}
	return Info{Slug: Slugify(name), Icon: DefaultIcon}
}

// slugReplacer folds Norwegian letters and separators into slug-safe runes
var slugReplacer = strings.NewReplacer(
	"æ", "ae", "ø", "oe", "å", "aa",
	" ", "_", "-", "_", "/", "_", ",", "",
)

// Slugify derives a lowercase identifier usable in entity IDs and UIDs
func Slugify(name string) string {
	slug := slugReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
	// Collapse runs of underscores left by stripped punctuation
	for strings.Contains(slug, "__") {
		slug = strings.ReplaceAll(slug, "__", "_")
	}
	return strings.Trim(slug, "_")
}
