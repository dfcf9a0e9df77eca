package sim

// Document is one configuration document describing a subsystem of the optical system
// (atmosphere, telescope, relay optics, instrument, detector) or an instrument mode.
type Document struct {
	Object      string         `yaml:"object"`
	Name        string         `yaml:"name"`
	Alias       string         `yaml:"alias"`
	Description string         `yaml:"description"`
	Properties  map[string]any `yaml:"properties"`
	Effects     []EffectRecord `yaml:"effects"`
	ModeYAMLs   []Document     `yaml:"mode_yamls"`
}

// ElementName returns the name an OpticalElement built from d carries.
func (d Document) ElementName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Object
}
