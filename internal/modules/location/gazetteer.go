// README: Gazetteer of Mozambican provinces and cities used to resolve free-text places.
package location

import (
	"sort"
	"strings"
)

// provinceAliases maps each canonical province key to alternate spellings.
var provinceAliases = map[string][]string{
	"maputo":       {"maputo provincia", "provincia de maputo", "maputo cidade", "cidade de maputo"},
	"gaza":         {"provincia de gaza"},
	"inhambane":    {"provincia de inhambane"},
	"sofala":       {"provincia de sofala"},
	"manica":       {"provincia de manica"},
	"tete":         {"provincia de tete"},
	"zambezia":     {"zambezi", "provincia da zambezia"},
	"nampula":      {"provincia de nampula"},
	"niassa":       {"provincia do niassa", "provincia de niassa"},
	"cabo delgado": {"cabodelgado", "provincia de cabo delgado"},
}

type cityEntry struct {
	province string
	aliases  []string
}

var cities = map[string]cityEntry{
	"maputo":             {"maputo", []string{"cidade de maputo", "maputo cidade", "lourenco marques"}},
	"matola":             {"maputo", nil},
	"boane":              {"maputo", nil},
	"marracuene":         {"maputo", nil},
	"manhica":            {"maputo", nil},
	"namaacha":           {"maputo", []string{"namaacha vila"}},
	"xai xai":            {"gaza", []string{"xaixai", "xai-xai"}},
	"chokwe":             {"gaza", []string{"chokue"}},
	"chibuto":            {"gaza", nil},
	"macia":              {"gaza", []string{"bilene"}},
	"inhambane":          {"inhambane", nil},
	"maxixe":             {"inhambane", nil},
	"vilankulo":          {"inhambane", []string{"vilanculos", "vilanculo"}},
	"massinga":           {"inhambane", nil},
	"beira":              {"sofala", nil},
	"dondo":              {"sofala", nil},
	"nhamatanda":         {"sofala", nil},
	"gorongosa":          {"sofala", nil},
	"chimoio":            {"manica", nil},
	"manica":             {"manica", []string{"vila de manica"}},
	"gondola":            {"manica", nil},
	"catandica":          {"manica", nil},
	"tete":               {"tete", []string{"cidade de tete"}},
	"moatize":            {"tete", nil},
	"songo":              {"tete", nil},
	"quelimane":          {"zambezia", nil},
	"mocuba":             {"zambezia", nil},
	"gurue":              {"zambezia", nil},
	"milange":            {"zambezia", nil},
	"nampula":            {"nampula", []string{"cidade de nampula"}},
	"nacala":             {"nampula", []string{"nacala porto"}},
	"ilha de mocambique": {"nampula", []string{"ilha de mozambique"}},
	"angoche":            {"nampula", nil},
	"monapo":             {"nampula", nil},
	"lichinga":           {"niassa", nil},
	"cuamba":             {"niassa", nil},
	"pemba":              {"cabo delgado", []string{"porto amelia"}},
	"montepuez":          {"cabo delgado", nil},
	"mocimboa da praia":  {"cabo delgado", []string{"mocimboa"}},
	"chiure":             {"cabo delgado", nil},
}

// countryKeys are address segments that carry no corridor information.
var countryKeys = map[string]bool{"mocambique": true, "mozambique": true, "mz": true, "moz": true}

type gazEntry struct {
	city     string
	province string
}

// Gazetteer resolves place names against an immutable alias index.
type Gazetteer struct {
	cityIndex     map[string]gazEntry
	provinceIndex map[string]string
	names         []string
}

var defaultGazetteer = newGazetteer()

// DefaultGazetteer returns the built-in Mozambique gazetteer.
func DefaultGazetteer() *Gazetteer {
	return defaultGazetteer
}

func newGazetteer() *Gazetteer {
	g := &Gazetteer{
		cityIndex:     make(map[string]gazEntry),
		provinceIndex: make(map[string]string),
	}
	for prov, aliases := range provinceAliases {
		g.provinceIndex[prov] = prov
		for _, a := range aliases {
			g.provinceIndex[Normalize(a)] = prov
		}
	}
	for city, e := range cities {
		g.cityIndex[city] = gazEntry{city: city, province: e.province}
		for _, a := range e.aliases {
			g.cityIndex[Normalize(a)] = gazEntry{city: city, province: e.province}
		}
	}
	for k := range g.cityIndex {
		g.names = append(g.names, k)
	}
	for k := range g.provinceIndex {
		if _, dup := g.cityIndex[k]; !dup {
			g.names = append(g.names, k)
		}
	}
	sort.Strings(g.names)
	return g
}

// CanonicalProvince maps a normalized province key to its canonical form,
// returning the key unchanged when it is not a known alias.
func (g *Gazetteer) CanonicalProvince(key string) string {
	if p, ok := g.provinceIndex[key]; ok {
		return p
	}
	return key
}

// CanonicalCity maps a normalized city key to its canonical form.
func (g *Gazetteer) CanonicalCity(key string) string {
	if e, ok := g.cityIndex[key]; ok {
		return e.city
	}
	return key
}

// Resolve reads free text as a gazetteer place. Each comma segment and each
// run of up to three words is tried exactly before misspellings are
// considered. Cities win over provinces with the same name ("maputo").
func (g *Gazetteer) Resolve(text string) Place {
	p := Place{Input: text, Key: Normalize(text)}
	if p.Key == "" {
		return p
	}
	candidates := g.candidateKeys(text, p.Key)

	for _, c := range candidates {
		if g.fill(&p, c) {
			return p
		}
	}
	for _, c := range candidates {
		if name, ok := g.closest(c); ok && g.fill(&p, name) {
			p.Fuzzy = true
			return p
		}
	}
	return p
}

// closest returns the indexed name with the smallest edit distance to key
// among those within its misspelling budget.
func (g *Gazetteer) closest(key string) (string, bool) {
	best, bestDist := "", -1
	for _, name := range g.names {
		if !SimilarKeys(key, name) {
			continue
		}
		if d := levenshtein(key, name); bestDist < 0 || d < bestDist {
			best, bestDist = name, d
		}
	}
	return best, bestDist >= 0
}

func (g *Gazetteer) fill(p *Place, key string) bool {
	if e, ok := g.cityIndex[key]; ok {
		p.City, p.Province = e.city, e.province
		return true
	}
	if prov, ok := g.provinceIndex[key]; ok {
		p.Province, p.IsProvince = prov, true
		return true
	}
	return false
}

// candidateKeys lists lookup keys from most to least specific.
func (g *Gazetteer) candidateKeys(text, key string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(k string) {
		if k == "" || seen[k] || countryKeys[k] {
			return
		}
		seen[k] = true
		out = append(out, k)
	}
	add(key)
	segments := Segments(text)
	for _, s := range segments {
		add(s)
	}
	for _, s := range segments {
		words := strings.Fields(s)
		for size := min(3, len(words)); size >= 1; size-- {
			for i := 0; i+size <= len(words); i++ {
				add(strings.Join(words[i:i+size], " "))
			}
		}
	}
	return out
}
