package preprocessor

import (
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MaxIncludeDepth bounds #include nesting, which also stops include cycles.
const MaxIncludeDepth = 200

const resolveCacheSize = 1024

func newResolveCache() *lru.Cache[string, string] {
	cache, err := lru.New[string, string](resolveCacheSize)
	if err != nil {
		panic(err)
	}
	return cache
}

// findInclude searches for an included file. Quoted names are looked up
// in the directory of the including file first; both forms then search the
// user include paths followed by the system include paths.
func (c *Context) findInclude(name string, angled bool, dir string) (string, bool) {
	key := dir + "\x00" + name
	if angled {
		key = "<>\x00" + name
	}
	if path, ok := c.resolved.Get(key); ok {
		return path, path != ""
	}

	path := c.searchInclude(name, angled, dir)
	c.resolved.Add(key, path)
	if path == "" {
		c.logger.Debug("include file not found", "name", name, "angled", angled)
	} else {
		c.logger.Debug("resolved include file", "name", name, "path", path)
	}
	return path, path != ""
}

func (c *Context) searchInclude(name string, angled bool, dir string) string {
	if filepath.IsAbs(name) {
		if c.policy.Exists(name) {
			return name
		}
		return ""
	}
	var candidates []string
	if !angled {
		candidates = append(candidates, dir)
	}
	candidates = append(candidates, c.userPaths...)
	candidates = append(candidates, c.sysPaths...)
	for _, d := range candidates {
		path := filepath.Join(d, name)
		if c.policy.Exists(path) {
			return path
		}
	}
	return ""
}

// includeName extracts the header name of an #include directive from its
// tokens: "name", <name>, or a macro expanding to one of those.
func (c *Context) includeName(toks []Token, pos Position) (name string, angled bool, err error) {
	toks = trimBlank(toks)
	if len(toks) == 1 && toks[0].Kind == StringLiteral && strings.HasPrefix(toks[0].Value, `"`) {
		return strings.Trim(toks[0].Value, `"`), false, nil
	}
	if len(toks) >= 2 && toks[0].isPunct("<") {
		var b strings.Builder
		for _, t := range toks[1:] {
			if t.isPunct(">") {
				if name := b.String(); name != "" {
					return name, true, nil
				}
				break
			}
			b.WriteString(t.Value)
		}
		return "", false, errorf(IllFormedDirective, pos, "ill formed #include directive")
	}
	expanded, err := c.expandAll(toks)
	if err != nil {
		return "", false, err
	}
	expanded = trimBlank(expanded)
	if len(expanded) == 0 || expanded[0].Kind == Identifier || len(expanded) == len(toks) && tokensString(expanded) == tokensString(toks) {
		return "", false, errorf(IllFormedDirective, pos, "ill formed #include directive: %s", tokensString(toks))
	}
	return c.includeName(expanded, pos)
}
