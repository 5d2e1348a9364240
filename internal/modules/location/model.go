// README: Resolved place returned by the gazetteer.
package location

// Place is the gazetteer's reading of a free-text location.
type Place struct {
	Input string
	Key   string
	// City and Province are canonical normalized keys, empty when unknown.
	City     string
	Province string
	// IsProvince is set when the text names a province rather than a city.
	IsProvince bool
	Fuzzy      bool
}

// Known reports whether the gazetteer recognised the place.
func (p Place) Known() bool {
	return p.Province != ""
}
