package crontainer

// Journaler describes an event logger.
type Journaler interface {
	Write(Event) error
}

// warn writes a warning event for the given component. Journal write errors
// are ignored, since there is nowhere else to report them.
func warn(j Journaler, component string, err error) {
	j.Write(&EventWarning{
		Component: component,
		Error:     err.Error(),
	})
}
