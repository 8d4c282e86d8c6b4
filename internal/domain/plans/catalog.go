package plans

import (
	"errors"
	"strings"
)

// Plan identifiers (single source of truth)
type Plan string

const (
	Monthly    Plan = "mensal"
	Quarterly  Plan = "trimestral"
	Semiannual Plan = "semestral"
)

var ErrInvalidPlan = errors.New("invalid plan")

// Info describes a catalog entry. Days is the canonical duration; Months is kept
// for display only.
type Info struct {
	Plan          Plan   `json:"value"`
	Label         string `json:"label"`
	Days          int    `json:"days"`
	Months        int    `json:"months"`
	DurationLabel string `json:"duration"`
	PriceCents    int64  `json:"price_cents"`
}

// MonthlyPriceCents spreads the plan price over its months.
func (i Info) MonthlyPriceCents() int64 {
	if i.Months <= 0 {
		return i.PriceCents
	}
	return i.PriceCents / int64(i.Months)
}

var catalog = []Info{
	{Plan: Monthly, Label: "Mensal", Days: 30, Months: 1, DurationLabel: "1 mês", PriceCents: 9700},
	{Plan: Quarterly, Label: "Trimestral", Days: 90, Months: 3, DurationLabel: "3 meses", PriceCents: 26700},
	{Plan: Semiannual, Label: "Semestral", Days: 180, Months: 6, DurationLabel: "6 meses", PriceCents: 49700},
}

// offerToPlan maps payment-provider offer names onto plans. The default offer is
// sold as the monthly plan.
var offerToPlan = map[string]Plan{
	"OFERTA MENSAL":     Monthly,
	"OFERTA TRIMESTRAL": Quarterly,
	"OFERTA SEMESTRAL":  Semiannual,
	"OFERTA PADRÃO":     Monthly,
}

// All returns the catalog in display order.
func All() []Info {
	out := make([]Info, len(catalog))
	copy(out, catalog)
	return out
}

func Lookup(p Plan) (Info, error) {
	for _, info := range catalog {
		if info.Plan == p {
			return info, nil
		}
	}
	return Info{}, ErrInvalidPlan
}

// Parse accepts either the plan value ("mensal") or its label ("Mensal"),
// case-insensitively.
func Parse(s string) (Plan, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", ErrInvalidPlan
	}
	for _, info := range catalog {
		if key == string(info.Plan) || key == strings.ToLower(info.Label) {
			return info.Plan, nil
		}
	}
	return "", ErrInvalidPlan
}

// FromOffer resolves a provider offer name such as "Oferta Trimestral".
func FromOffer(offerName string) (Plan, error) {
	p, ok := offerToPlan[strings.ToUpper(strings.TrimSpace(offerName))]
	if !ok {
		return "", ErrInvalidPlan
	}
	return p, nil
}

// Label returns the persisted display name of p, or "" when p is unknown.
func (p Plan) Label() string {
	info, err := Lookup(p)
	if err != nil {
		return ""
	}
	return info.Label
}

func (p Plan) Valid() bool {
	_, err := Lookup(p)
	return err == nil
}
