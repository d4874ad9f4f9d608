package preprocessor

// Source is the loaded text of one file. Path is the name used for
// positions and for resolving includes relative to the file.
type Source struct {
	Path string
	Text []byte
}

// InputPolicy materializes files for the preprocessor: the root file and
// every file named by an #include directive.
type InputPolicy interface {
	// Exists reports whether path names a file that can be loaded. It is
	// used while searching the include paths.
	Exists(path string) bool
	// Load reads path. from is the position of the requesting #include
	// directive, or the zero Position for the root file. Failures should
	// be reported as an *Error of kind BadIncludeFile.
	Load(path string, from Position) (*Source, error)
}
