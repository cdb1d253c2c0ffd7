// Package loader registers the optional HTTP features served by the serve command.
//
// A feature reports whether it can run with the current configuration and mounts its
// routes on the API router:
//
//	type Feature interface {
//	    Name() string
//	    IsEnabled() bool
//	    Load(app fiber.Router) error
//	}
//
// Manager keeps features in registration order; LoadAll mounts the enabled ones and
// returns their names.
package loader
