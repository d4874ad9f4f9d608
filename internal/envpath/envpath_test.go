package envpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAugment(t *testing.T) {
	windows := Platform{OS: "windows", Arch: "amd64"}
	linux := Platform{OS: "linux", Arch: "amd64"}

	tests := []struct {
		name     string
		platform Platform
		env      MapEnv
		want     []string
	}{
		{"msvc INCLUDE", windows, MapEnv{"INCLUDE": `C:\VC\include;C:\SDK`, "MINGW_PREFIX": "/mingw64"}, []string{`C:\VC\include;C:\SDK`}},
		{"mingw prefix", windows, MapEnv{"MINGW_PREFIX": "/mingw64"}, []string{"/mingw64/include"}},
		{"mingw prefix and host", windows, MapEnv{"MINGW_PREFIX": "/mingw64", "MINGW_CHOST": "x86_64-w64-mingw32"}, []string{"/mingw64/include", "/mingw64/x86_64-w64-mingw32/include"}},
		{"mingw host alone", windows, MapEnv{"MINGW_CHOST": "x86_64-w64-mingw32"}, nil},
		{"windows without variables", windows, MapEnv{}, nil},
		{"posix default", linux, MapEnv{}, []string{"/usr/include"}},
		{"windows variables ignored on posix", linux, MapEnv{"INCLUDE": "/inc"}, []string{"/usr/include"}},
		{"CPATH", linux, MapEnv{"CPATH": "/a"}, []string{"/a"}},
		{"CPATH and C_INCLUDE_PATH", linux, MapEnv{"CPATH": "/a", "C_INCLUDE_PATH": "/c"}, []string{"/a", "/c"}},
		{"C_INCLUDE_PATH shadows CPLUS_INCLUDE_PATH", linux, MapEnv{"C_INCLUDE_PATH": "/c", "CPLUS_INCLUDE_PATH": "/cxx"}, []string{"/c"}},
		{"CPLUS_INCLUDE_PATH", linux, MapEnv{"CPATH": "/a", "CPLUS_INCLUDE_PATH": "/cxx"}, []string{"/a", "/cxx"}},
		{"values are not split", linux, MapEnv{"CPATH": "/a:/b"}, []string{"/a:/b"}},
		{"empty values count as unset", linux, MapEnv{"CPATH": "", "C_INCLUDE_PATH": ""}, []string{"/usr/include"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Augment(tt.platform, tt.env))
		})
	}
}

func TestOSEnv(t *testing.T) {
	t.Setenv("MZCPP_ENVPATH_TEST", "/opt/include")
	v, ok := OSEnv{}.LookupEnv("MZCPP_ENVPATH_TEST")
	assert.True(t, ok)
	assert.Equal(t, "/opt/include", v)

	assert.Equal(t, []string{"/opt/include"}, Augment(Platform{OS: "linux"}, MapEnv{"CPATH": "/opt/include"}))
}
