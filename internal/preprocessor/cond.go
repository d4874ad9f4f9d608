package preprocessor

// condStack tracks nested conditional sections of one file.
type condStack struct {
	stack []condFrame
}

type condFrame struct {
	parentActive bool
	taken        bool // some branch of this section was selected
	active       bool
	sawElse      bool
	pos          Position
}

func (c *condStack) Depth() int { return len(c.stack) }

func (c *condStack) Active() bool {
	if len(c.stack) == 0 {
		return true
	}
	return c.stack[len(c.stack)-1].active
}

// ParentActive reports whether the innermost section is itself inside
// an active region.
func (c *condStack) ParentActive() bool {
	if len(c.stack) == 0 {
		return true
	}
	return c.stack[len(c.stack)-1].parentActive
}

func (c *condStack) Push(cond bool, pos Position) {
	parent := c.Active()
	active := parent && cond
	c.stack = append(c.stack, condFrame{
		parentActive: parent,
		taken:        active,
		active:       active,
		pos:          pos,
	})
}

// Taken reports whether a branch of the innermost section was selected
// already, so an #elif need not be evaluated.
func (c *condStack) Taken() bool {
	return len(c.stack) > 0 && c.stack[len(c.stack)-1].taken
}

func (c *condStack) Elif(cond bool, pos Position) error {
	if len(c.stack) == 0 {
		return errorf(MissingMatchingIf, pos, "the #if for this #elif is missing")
	}
	top := &c.stack[len(c.stack)-1]
	if top.sawElse {
		return errorf(MissingMatchingEndif, pos, "#elif after #else")
	}
	if !top.parentActive || top.taken {
		top.active = false
		return nil
	}
	top.active = cond
	top.taken = cond
	return nil
}

func (c *condStack) Else(pos Position) error {
	if len(c.stack) == 0 {
		return errorf(MissingMatchingIf, pos, "the #if for this #else is missing")
	}
	top := &c.stack[len(c.stack)-1]
	if top.sawElse {
		return errorf(MissingMatchingEndif, pos, "#else after #else")
	}
	top.sawElse = true
	if !top.parentActive {
		top.active = false
		return nil
	}
	top.active = !top.taken
	top.taken = true
	return nil
}

func (c *condStack) Pop(pos Position) error {
	if len(c.stack) == 0 {
		return errorf(MissingMatchingIf, pos, "the #if for this #endif is missing")
	}
	c.stack = c.stack[:len(c.stack)-1]
	return nil
}

// Unclosed returns the position of the innermost open section.
func (c *condStack) Unclosed() Position {
	if len(c.stack) == 0 {
		return Position{}
	}
	return c.stack[len(c.stack)-1].pos
}
