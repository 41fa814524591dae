package classify

import "sort"

// Fallback is the synthetic category assigned when the model is not
// confident enough, or cannot score a reference at all. It has no
// numeric class id.
const Fallback = "Other"

// Labels is the fixed category mapping used to decode classifier
// output. Decoding is exact-match lookup; there is no fuzzy matching.
var Labels = map[string]int{
	"Cash":         1,
	"Vacances":     2,
	"Alimentaire":  3,
	"Restaurants":  4,
	"Boutiques":    5,
	"Transports":   6,
	"Revenus":      7,
	"Jeux":         8,
	"Prelevements": 9,
	"Maison":       10,
	"Sante":        11,
	"Tabac":        12,
	"Loisir":       13,
	"Essence":      14,
	"Divers":       15,
}

// LabelNames returns the label set ordered by class id, which is the
// class order used when training a model.
func LabelNames() []string {
	names := make([]string, 0, len(Labels))
	for name := range Labels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return Labels[names[i]] < Labels[names[j]]
	})
	return names
}
