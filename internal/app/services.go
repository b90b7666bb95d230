package app

// Services groups the services a host shell needs over one store.
type Services struct {
	Todos     *TodoService
	Migration *MigrationService
	Prefs     *PreferencesService
	Panel     *PanelService
}

// NewServices wires every service to store. The panel starts without a live
// window; shells that render one call Panel.Attach.
func NewServices(store Store, opts Options) *Services {
	opts = opts.withDefaults()
	prefs := NewPreferencesService(store, opts)
	return &Services{
		Todos:     NewTodoService(store, opts),
		Migration: NewMigrationService(store, opts),
		Prefs:     prefs,
		Panel:     NewPanelService(prefs, nil, opts),
	}
}
