// Package envpath discovers system include directories from the hosting
// environment.
package envpath

import (
	"os"
	"runtime"
)

// Env looks up environment variables. It is satisfied by OSEnv in
// production and by MapEnv in tests.
type Env interface {
	LookupEnv(key string) (string, bool)
}

// OSEnv reads the process environment.
type OSEnv struct{}

func (OSEnv) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }

// MapEnv is a fixed environment.
type MapEnv map[string]string

func (m MapEnv) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Platform identifies the host the preprocessor runs for, using GOOS and
// GOARCH values.
type Platform struct {
	OS   string
	Arch string
}

// Host returns the platform of the running process.
func Host() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

func (p Platform) Windows() bool { return p.OS == "windows" }

// lookup treats a variable that is set to the empty string as unset.
func lookup(env Env, key string) (string, bool) {
	v, ok := env.LookupEnv(key)
	return v, ok && v != ""
}

// Augment returns the system include directories contributed by the
// environment, to be searched after the user's -S paths. Every value is
// used as a single directory; list separators are not interpreted.
//
// On Windows, INCLUDE wins when set (MSVC). Otherwise MINGW_PREFIX yields
// $MINGW_PREFIX/include and, together with MINGW_CHOST,
// $MINGW_PREFIX/$MINGW_CHOST/include.
//
// Elsewhere CPATH is used when set, followed by C_INCLUDE_PATH or, only if
// that is unset, CPLUS_INCLUDE_PATH. With none of the three set the result
// is /usr/include.
func Augment(p Platform, env Env) []string {
	if p.Windows() {
		if inc, ok := lookup(env, "INCLUDE"); ok {
			return []string{inc}
		}
		prefix, ok := lookup(env, "MINGW_PREFIX")
		if !ok {
			return nil
		}
		paths := []string{prefix + "/include"}
		if host, ok := lookup(env, "MINGW_CHOST"); ok {
			paths = append(paths, prefix+"/"+host+"/include")
		}
		return paths
	}

	var paths []string
	if cpath, ok := lookup(env, "CPATH"); ok {
		paths = append(paths, cpath)
	}
	if c, ok := lookup(env, "C_INCLUDE_PATH"); ok {
		paths = append(paths, c)
	} else if cxx, ok := lookup(env, "CPLUS_INCLUDE_PATH"); ok {
		paths = append(paths, cxx)
	}
	if len(paths) == 0 {
		paths = append(paths, "/usr/include")
	}
	return paths
}
