// Package plugin discovers, validates and registers pj plugins.
//
// A plugin is a directory holding an entry script that defines a command
// group. Built-in plugins ship inside the binary; external plugins live in the
// user's plugin directory and may declare their own isolated runtime in a
// metadata file. Registration resolves case-insensitive name collisions and
// checks runtime compatibility before the plugin's command group is loaded
// through a Provider.
package plugin
