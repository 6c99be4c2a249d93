package exitcode

const (
	Success        = 0
	UsageError     = 1
	ConfigError    = 2
	DBConnError    = 3
	SourceError    = 4
	BuildError     = 5
	PartialSuccess = 6
	IntegrityError = 7
	PublishError   = 8
)
