// Package production models produce/consume rates. A facility owns
// modules; each module carries a PAC table (per-commodity produce/consume
// per production cycle) and the facility's compound table is the
// per-commodity sum over all modules, recomputed on module add/remove.
package production

import "sort"

type Rate struct {
	Produces int `json:"produces"`
	Consumes int `json:"consumes"`
}

// PAC maps commodity id to its rate.
type PAC map[string]Rate

func (p PAC) Clone() PAC {
	out := make(PAC, len(p))
	for c, r := range p {
		out[c] = r
	}
	return out
}

// Commodities returns the referenced commodity ids in stable order.
func (p PAC) Commodities() []string {
	out := make([]string, 0, len(p))
	for c := range p {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

type Module struct {
	ID   string
	Name string
	PAC  PAC
}

// Compound sums the PAC tables of all modules.
func Compound(modules []Module) PAC {
	out := PAC{}
	for _, m := range modules {
		for c, r := range m.PAC {
			cur := out[c]
			cur.Produces += r.Produces
			cur.Consumes += r.Consumes
			out[c] = cur
		}
	}
	return out
}

// Surplus is produces minus consumes for a commodity; positive means the
// owner is a net seller of it.
func (p PAC) Surplus(commodity string) int {
	r := p[commodity]
	return r.Produces - r.Consumes
}
