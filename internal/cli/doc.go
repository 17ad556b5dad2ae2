// Package cli implements the pj command-line interface.
//
// An App owns everything one run needs: the configuration ledger and its
// validator pipeline, the deferred message buffer, the plugin registry and
// the isolation switcher. Startup runs in a fixed order before Cobra sees
// the command line:
//
//  1. Resolve a writable data directory (fatal if none)
//  2. Load the system, user and project configuration sources
//  3. Apply --override-config, found with a pre-scan of the arguments
//  4. Validate configured fields, printing aggressive messages right away
//  5. Switch debug output from PJ_DEBUG and development_mode
//  6. Discover and register built-in, then third-party plugins
//
// # Command Structure
//
//	pj init              - Create the user configuration file
//	pj show-config       - Show configuration values and where they came from
//	pj version           - Print version information
//	pj doctor            - Diagnose configuration, storage and plugins
//	pj <plugin> <cmd>    - Commands contributed by plugins
//
// Plugins that were disabled (name conflict or runtime mismatch) are still
// listed; invoking one prints why it is disabled and exits with code 1.
//
// # Flag Handling
//
// --override-config (-O) takes an inline YAML/JSON mapping or a path to a
// .json/.yml/.yaml file. It must come before the subcommand. init,
// show-config and version reject it. --no-color disables styled output.
//
// Deferred messages are printed in a panel after the command finishes.
package cli
