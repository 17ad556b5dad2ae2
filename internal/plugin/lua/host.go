package lua

import (
	"fmt"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// HostModule is the name plugins require to reach pj.
const HostModule = "pj"

func (p *Provider) installHostModule(L *lua.LState, ps *plugState) {
	printFn := L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		fmt.Fprintln(ps.out, strings.Join(parts, "\t"))
		return 0
	})
	L.SetGlobal("print", printFn)

	L.PreloadModule(HostModule, func(L *lua.LState) int {
		mod := L.NewTable()
		L.SetField(mod, "name", lua.LString(ps.desc.Name))
		L.SetField(mod, "print", printFn)
		L.SetField(mod, "config", L.NewFunction(func(L *lua.LState) int {
			if p.host == nil {
				L.Push(L.NewTable())
				return 1
			}
			L.Push(toLValue(L, p.host.PluginSettings(ps.desc.Name)))
			return 1
		}))
		L.SetField(mod, "plugin_dir", L.NewFunction(func(L *lua.LState) int {
			if p.host == nil {
				L.Push(lua.LString(""))
				return 1
			}
			L.Push(lua.LString(p.host.PluginDir()))
			return 1
		}))
		L.SetField(mod, "plugins", L.NewFunction(func(L *lua.LState) int {
			list := L.NewTable()
			if p.host != nil {
				for _, info := range p.host.PluginInfos() {
					t := L.NewTable()
					L.SetField(t, "name", lua.LString(info.Name))
					L.SetField(t, "kind", lua.LString(info.Kind))
					L.SetField(t, "status", lua.LString(info.Status))
					L.SetField(t, "location", lua.LString(info.Location))
					list.Append(t)
				}
			}
			L.Push(list)
			return 1
		}))
		L.SetField(mod, "new_plugin", L.NewFunction(func(L *lua.LState) int {
			name := L.CheckString(1)
			if p.host == nil {
				L.RaiseError("plugins can't be created here")
				return 0
			}
			dir, err := p.host.NewPlugin(name)
			if err != nil {
				L.RaiseError("%s", strings.TrimSpace(strings.TrimPrefix(err.Error(), "✗ ")))
				return 0
			}
			L.Push(lua.LString(dir))
			return 1
		}))
		L.Push(mod)
		return 1
	})
}

// toLValue converts decoded configuration values to Lua values.
func toLValue(L *lua.LState, v interface{}) lua.LValue {
	switch t := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(t)
	case string:
		return lua.LString(t)
	case int:
		return lua.LNumber(t)
	case int64:
		return lua.LNumber(t)
	case uint64:
		return lua.LNumber(t)
	case float64:
		return lua.LNumber(t)
	case []interface{}:
		tbl := L.NewTable()
		for _, item := range t {
			tbl.Append(toLValue(L, item))
		}
		return tbl
	case map[string]interface{}:
		tbl := L.NewTable()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			L.SetField(tbl, k, toLValue(L, t[k]))
		}
		return tbl
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = val
		}
		return toLValue(L, m)
	default:
		return lua.LString(fmt.Sprint(t))
	}
}
