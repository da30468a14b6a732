package schema

import "aimsflow/internal/params"

// flavorContracts declares the output expectation for each builtin flavor.
// Identity fields (dir_name, completed_at, converged) are implicit in every
// contract; only physics fields are listed. Every task document reports the
// final structure, so downstream stages can always chain on it.
var flavorContracts = map[params.Flavor]Expectation{
	params.FlavorStatic: {
		Required: []Field{FieldEnergy, FieldFreeEnergy, FieldStructure},
		Optional: []Field{FieldForces, FieldStress},
	},
	params.FlavorRelaxation: {
		Required: []Field{FieldEnergy, FieldFreeEnergy, FieldForces, FieldStructure},
		Optional: []Field{FieldStress},
	},
	params.FlavorBandStructure: {
		Required: []Field{FieldEnergy, FieldBandgap, FieldStructure},
		Optional: []Field{FieldForces},
	},
	params.FlavorGW: {
		Required: []Field{FieldBandgap, FieldStructure},
		Optional: []Field{FieldEnergy},
	},
	params.FlavorPhonon: {
		Required: []Field{FieldEnergy, FieldForces, FieldStructure},
		Optional: []Field{FieldStress},
	},
	params.FlavorSocket: {
		Required: []Field{FieldEnergy, FieldForces, FieldStructure},
		Optional: []Field{FieldStress},
	},
}

// ContractFor returns the output expectation for a flavor. The implicit
// identity fields are included in the returned expectation.
func ContractFor(flavor params.Flavor) (Expectation, bool) {
	contract, ok := flavorContracts[flavor]
	if !ok {
		return Expectation{}, false
	}
	out := Expectation{
		Required: append([]Field{}, contract.Required...),
		Optional: append([]Field{FieldConverged, FieldDirName, FieldCompletedAt}, contract.Optional...),
	}
	return out, true
}
