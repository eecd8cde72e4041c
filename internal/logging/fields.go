package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldRunID identifies one process run.
	FieldRunID = "run_id"
	// FieldCursor is the journal cursor a log line refers to.
	FieldCursor = "cursor"
	// FieldPath is a filesystem path a log line refers to.
	FieldPath = "path"
)
