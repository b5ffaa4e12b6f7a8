package engine

// EngineNotRunningError is returned when an operation requires the engine to be running.
type EngineNotRunningError struct{}

func (e *EngineNotRunningError) Error() string {
	return "engine is not running"
}
