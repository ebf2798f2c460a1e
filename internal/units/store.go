package units

// Store defines the interface for unit and template persistence. The
// manager owns ordering, so collections are written through whole.
type Store interface {
	// Load loads the configuration from storage
	Load() error

	// Units returns all persisted units in file order
	Units() []StreamUnit

	// CustomTemplates returns persisted custom templates in file order
	CustomTemplates() []Template

	// SaveUnits replaces the persisted unit list
	SaveUnits(streamUnits []StreamUnit) error

	// SaveTemplates replaces the persisted custom template list
	SaveTemplates(templates []Template) error
}
