//go:build wireinject

package daemon

import "github.com/google/wire"

// InitializeController is the Wire injector for the controller role. Wire
// itself is not run as part of this build (no go:generate invocation ships
// here); NewController in controller.go is the hand-authored equivalent of
// the wire_gen.go Wire would otherwise produce from this graph.
func InitializeController(cfg Config) (*Controller, error) {
	wire.Build(
		provideLock,
		provideControllerLogger,
		provideStore,
		provideStats,
		provideListeners,
		provideStandardAdapter,
		// providePrivilegedAdapter is wired in after the fact via
		// (*registry.Local).SetPrivilegedAdapter, not through this graph:
		// it depends on providePMS, which depends on provideLocal.
		provideLocal,
		providePMS,
		provideWorkerManager,
		provideControllerRegistry,
		provideControlFront,
		wire.Struct(new(Controller), "*"),
	)
	return nil, nil
}

// InitializeWorker is the Wire injector for the worker role.
func InitializeWorker(cfg Config) (*Worker, error) {
	wire.Build(
		provideLock,
		provideWorkerLogger,
		provideStandardAdapter,
		provideWorkerLocal,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil
}
