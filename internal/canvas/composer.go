package canvas

// Stage is a state of the connection composer.
type Stage int

const (
	// StageIdle means flow drawing is off.
	StageIdle Stage = iota
	// StagePickSource waits for the node the new flow starts at.
	StagePickSource
	// StagePickTarget waits for the node the new flow ends at.
	StagePickTarget
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StagePickSource:
		return "pickSource"
	case StagePickTarget:
		return "pickTarget"
	}
	return "unknown"
}

// Composer is the idle → pickSource → pickTarget → idle state machine for
// drawing new flows. It is independent of node selection.
type Composer struct {
	stage  Stage
	source string
}

// Stage returns the current stage.
func (c *Composer) Stage() Stage {
	return c.stage
}

// Active reports whether the composer is past idle.
func (c *Composer) Active() bool {
	return c.stage != StageIdle
}

// Source returns the node picked as source, if any.
func (c *Composer) Source() string {
	return c.source
}

// Enter moves from idle to pickSource. It returns false, changing nothing,
// when the composer is already active.
func (c *Composer) Enter() bool {
	if c.stage != StageIdle {
		return false
	}
	c.stage = StagePickSource
	return true
}

// Click feeds a node click into the machine. It returns the completed
// flow's endpoints when the click finishes one. Clicking the source again
// while picking a target cancels back to idle. Clicks while idle are ignored.
func (c *Composer) Click(nodeID string) (source, target string, completed bool) {
	switch c.stage {
	case StagePickSource:
		c.source = nodeID
		c.stage = StagePickTarget
	case StagePickTarget:
		if nodeID == c.source {
			c.Reset()
			return "", "", false
		}
		source, target = c.source, nodeID
		c.Reset()
		return source, target, true
	}
	return "", "", false
}

// Reset forces the composer back to idle from any stage.
func (c *Composer) Reset() {
	c.stage = StageIdle
	c.source = ""
}
