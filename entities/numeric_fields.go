package entities

// NumericField describes one range-bounded setting and how to read and write it.
type NumericField struct {
	Name  string
	Range Range
	Get   func(s *GenerationSettings) float64
	Set   func(s *GenerationSettings, value float64)
}

var numericFields = []NumericField{
	{
		Name:  "scale",
		Range: Range{Min: 1, Max: 30, Step: 0.1},
		Get:   func(s *GenerationSettings) float64 { return s.Scale },
		Set:   func(s *GenerationSettings, v float64) { s.Scale = v },
	},
	{
		Name:  "steps",
		Range: Range{Min: 1, Max: 150, Step: 1},
		Get:   func(s *GenerationSettings) float64 { return float64(s.Steps) },
		Set:   func(s *GenerationSettings, v float64) { s.Steps = int(v) },
	},
	{
		Name:  "width",
		Range: Range{Min: 64, Max: 2048, Step: 64},
		Get:   func(s *GenerationSettings) float64 { return float64(s.Width) },
		Set:   func(s *GenerationSettings, v float64) { s.Width = int(v) },
	},
	{
		Name:  "height",
		Range: Range{Min: 64, Max: 2048, Step: 64},
		Get:   func(s *GenerationSettings) float64 { return float64(s.Height) },
		Set:   func(s *GenerationSettings, v float64) { s.Height = int(v) },
	},
	{
		Name:  "hr_scale",
		Range: Range{Min: 1, Max: 4, Step: 0.1},
		Get:   func(s *GenerationSettings) float64 { return s.HRScale },
		Set:   func(s *GenerationSettings, v float64) { s.HRScale = v },
	},
	{
		Name:  "denoising_strength",
		Range: Range{Min: 0, Max: 1, Step: 0.01},
		Get:   func(s *GenerationSettings) float64 { return s.DenoisingStrength },
		Set:   func(s *GenerationSettings, v float64) { s.DenoisingStrength = v },
	},
	{
		Name:  "hr_second_pass_steps",
		Range: Range{Min: 0, Max: 150, Step: 1},
		Get:   func(s *GenerationSettings) float64 { return float64(s.HRSecondPassSteps) },
		Set:   func(s *GenerationSettings, v float64) { s.HRSecondPassSteps = int(v) },
	},
	{
		Name:  "clip_skip",
		Range: Range{Min: 1, Max: 12, Step: 1},
		Get:   func(s *GenerationSettings) float64 { return float64(s.ClipSkip) },
		Set:   func(s *GenerationSettings, v float64) { s.ClipSkip = int(v) },
	},
	{
		Name:  "reference_weight",
		Range: Range{Min: 0, Max: 2, Step: 0.05},
		Get:   func(s *GenerationSettings) float64 { return s.ReferenceWeight },
		Set:   func(s *GenerationSettings, v float64) { s.ReferenceWeight = v },
	},
	{
		Name:  "reference_start",
		Range: Range{Min: 0, Max: 1, Step: 0.01},
		Get:   func(s *GenerationSettings) float64 { return s.ReferenceStart },
		Set:   func(s *GenerationSettings, v float64) { s.ReferenceStart = v },
	},
	{
		Name:  "reference_end",
		Range: Range{Min: 0, Max: 1, Step: 0.01},
		Get:   func(s *GenerationSettings) float64 { return s.ReferenceEnd },
		Set:   func(s *GenerationSettings, v float64) { s.ReferenceEnd = v },
	},
	{
		Name:  "reference_fidelity",
		Range: Range{Min: 0, Max: 1, Step: 0.01},
		Get:   func(s *GenerationSettings) float64 { return s.ReferenceFidelity },
		Set:   func(s *GenerationSettings, v float64) { s.ReferenceFidelity = v },
	},
}

func NumericFields() []NumericField {
	return numericFields
}

func LookupNumericField(name string) (NumericField, bool) {
	for _, field := range numericFields {
		if field.Name == name {
			return field, true
		}
	}

	return NumericField{}, false
}
