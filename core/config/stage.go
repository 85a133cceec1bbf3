package config

// WriteStage is the state of a "press once to confirm, again to write"
// action such as saving the settings file or flashing radio parameters.
//
//	Idle -> ConfirmPending -> {Success, Error} -> Idle
//
// When there is nothing to overwrite the confirmation is skipped and the
// first press writes immediately.
type WriteStage int

const (
	StageIdle WriteStage = iota
	StageConfirmPending
	StageSuccess
	StageError
)

func (s WriteStage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageConfirmPending:
		return "confirm"
	case StageSuccess:
		return "success"
	case StageError:
		return "error"
	default:
		return "unknown"
	}
}

// Confirm drives a WriteStage.
type Confirm struct {
	stage WriteStage

	// NeedsConfirm reports whether the write would overwrite something.
	// A nil func always asks for confirmation.
	NeedsConfirm func() bool

	// Write performs the action.
	Write func() error
}

// Stage returns the current stage.
func (c *Confirm) Stage() WriteStage {
	return c.stage
}

// Press advances the machine by one user action and returns the new stage.
// The error from Write, if any, is returned alongside StageError.
func (c *Confirm) Press() (WriteStage, error) {
	switch c.stage {
	case StageIdle:
		if c.NeedsConfirm == nil || c.NeedsConfirm() {
			c.stage = StageConfirmPending
			return c.stage, nil
		}
		return c.write()
	case StageConfirmPending:
		return c.write()
	default:
		c.stage = StageIdle
		return c.stage, nil
	}
}

// Reset returns to Idle, used when the user moves away from the action.
func (c *Confirm) Reset() {
	c.stage = StageIdle
}

func (c *Confirm) write() (WriteStage, error) {
	if c.Write == nil {
		c.stage = StageError
		return c.stage, nil
	}
	if err := c.Write(); err != nil {
		c.stage = StageError
		return c.stage, err
	}
	c.stage = StageSuccess
	return c.stage, nil
}
