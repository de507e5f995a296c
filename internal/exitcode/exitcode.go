package exitcode

const (
	Success         = 0
	UsageError      = 1
	InvalidArgument = 2
	StoreConnError  = 3
	UpstreamError   = 4
	NotFound        = 5
	ExportError     = 6
)
