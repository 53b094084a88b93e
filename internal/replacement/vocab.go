package replacement

// functionalGroupWords is the keyword vocabulary used to compare chemical
// names and to extract functional groups.
var functionalGroupWords = []string{
	"acid", "alcohol", "ether", "ester", "oxide", "sulfate", "chloride",
}

// applicationKeywords are inferred from candidate descriptions.
var applicationKeywords = []string{
	"cosmetic", "industrial", "pharmaceutical", "food", "textile", "automotive", "coating",
}

// reputableManufacturers earn the higher performance-requirements proxy score.
var reputableManufacturers = []string{
	"basf", "dow", "dupont", "evonik", "clariant", "huntsman",
}

// sustainabilityKeywords mark bio-based or otherwise greener products.
var sustainabilityKeywords = []string{
	"bio", "renewable", "green", "sustainable", "eco",
}
