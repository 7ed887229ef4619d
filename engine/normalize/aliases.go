package normalize

// Alias tables map lowercase storefront spellings to canonical names.
// Storefronts disagree on casing, accents, and abbreviations; the tables
// keep cross-store product matching stable.

var defaultBrandAliases = map[string]string{
	"hp inc":           "HP",
	"hp inc.":          "HP",
	"hewlett-packard":  "HP",
	"hewlett packard":  "HP",
	"lg electronics":   "LG",
	"samsung elect":    "Samsung",
	"samsung electronics": "Samsung",
	"apple inc":        "Apple",
	"lenovo group":     "Lenovo",
	"asus computer":    "ASUS",
	"asustek":          "ASUS",
	"xiaomi corp":      "Xiaomi",
}

var defaultCategoryAliases = map[string]string{
	"laptops":              "laptop",
	"notebook":             "laptop",
	"notebooks":            "laptop",
	"portatiles":           "laptop",
	"portátiles":           "laptop",
	"celulares":            "smartphone",
	"celular":              "smartphone",
	"smartphones":          "smartphone",
	"telefonos":            "smartphone",
	"teléfonos":            "smartphone",
	"televisores":          "tv",
	"televisor":            "tv",
	"tvs":                  "tv",
	"smart tv":             "tv",
	"electrodomesticos":    "appliance",
	"electrodomésticos":    "appliance",
	"refrigeradoras":       "appliance",
	"audifonos":            "audio",
	"audífonos":            "audio",
	"auriculares":          "audio",
}
