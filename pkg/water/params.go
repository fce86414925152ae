// Package water defines the water-quality parameters, the tables that flow
// through the detection pipeline and the column normalizer.
package water

// Parameter is a canonical water-quality measurement identifier.
type Parameter string

const (
	PH               Parameter = "pH"
	Flowrate         Parameter = "Flowrate"
	WaterLevel       Parameter = "WaterLevel"
	Turbidity        Parameter = "Turbidity"
	WaterTemperature Parameter = "WaterTemperature"
)

// ParameterSpec describes one required parameter.
type ParameterSpec struct {
	ID Parameter
	// Aliases are lower-case raw header names accepted in alias mode.
	Aliases []string
	// ArtifactName is the stem of the per-parameter model artifact.
	ArtifactName string
}

// JointArtifactName is the stem of the single multi-feature model artifact.
const JointArtifactName = "IF_joint"

// AnomalyColumn is the label column written by the joint variant.
const AnomalyColumn = "Anomaly"

var specs = []ParameterSpec{
	{ID: PH, Aliases: []string{"ph_level"}, ArtifactName: "IF_pH_level"},
	{ID: Flowrate, Aliases: []string{"flow_rate"}, ArtifactName: "IF_flow_rate"},
	{ID: WaterLevel, Aliases: []string{"water_level"}, ArtifactName: "IF_water_level"},
	{ID: Turbidity, Aliases: []string{"turbidity"}, ArtifactName: "IF_turbidity"},
	{ID: WaterTemperature, Aliases: []string{"temperature"}, ArtifactName: "IF_temperature"},
}

// Specs returns the required parameters in declaration order.
func Specs() []ParameterSpec {
	out := make([]ParameterSpec, len(specs))
	for i, s := range specs {
		s.Aliases = append([]string(nil), s.Aliases...)
		out[i] = s
	}
	return out
}

// Parameters returns the required identifiers in declaration order.
func Parameters() []Parameter {
	out := make([]Parameter, len(specs))
	for i, s := range specs {
		out[i] = s.ID
	}
	return out
}

// LabelColumn returns the per-parameter anomaly column key, e.g. "pH_Anomaly".
func LabelColumn(p Parameter) string {
	return string(p) + "_Anomaly"
}

// ScoreColumn returns the key of the continuous score column paired with a label column.
func ScoreColumn(labelColumn string) string {
	return labelColumn + "_Score"
}
