// Package tag describes the configured process tags a data server exposes.
//
// Tags are supplied by configuration, never created by the subscription
// engine. Each tag has a stable Handle for the lifetime of the process, a
// human-readable name and a minimum polling interval imposed by the device or
// driver behind it.
//
// # Catalog File
//
// Catalogs are loaded from YAML:
//
//	defaultMinimumInterval: 100ms
//	tags:
//	  - handle: 1
//	    name: Boiler.Temperature
//	    minimumInterval: 250ms
//	  - handle: 2
//	    name: Boiler.Pressure
//
// A tag without its own minimumInterval inherits the catalog default.
package tag
