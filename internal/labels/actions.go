package labels

// Action is the disposal guidance attached to a category.
type Action struct {
	Recommended  string
	Alternatives []string
}

var actions = map[Category]Action{
	Biodegradable: {
		Recommended: "Send for composting or municipal wet-waste collection.",
		Alternatives: []string{
			"Keep wet waste separate from dry waste",
			"Use a home compost bin if possible",
			"Avoid plastic contamination in the bin",
		},
	},
	Hazardous: {
		Recommended: "Dispose via an authorized hazardous or e-waste collection point.",
		Alternatives: []string{
			"Never mix with regular household waste",
			"Store in a sealed container temporarily",
			"Use certified local hazardous collection drives",
		},
	},
	Recyclable: {
		Recommended: "Clean and route to a dry-waste recycling stream.",
		Alternatives: []string{
			"Rinse and dry before disposal",
			"Segregate by material type where possible",
			"Prefer reuse before recycling",
		},
	},
}

// ActionFor returns the guidance for c, falling back to the recyclable preset.
func ActionFor(c Category) Action {
	a, ok := actions[c]
	if !ok {
		a = actions[Recyclable]
	}
	return Action{Recommended: a.Recommended, Alternatives: append([]string(nil), a.Alternatives...)}
}
