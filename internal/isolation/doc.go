// Package isolation manages the module search path that plugin code resolves
// imports against. An external plugin's project directory and its isolated
// runtime's dependency roots are pushed to the front of the path while the
// plugin runs and popped again when its Guard is released.
//
// A dependency root is any lua_modules directory under the runtime. Modules
// may sit flat inside it or in a luarocks tree (lua_modules/share/lua/5.1);
// the plugin provider expands each root into both layouts.
//
// The stack is an explicit value. Nothing in this package touches process
// globals, so tests can create as many independent stacks as they like.
package isolation
