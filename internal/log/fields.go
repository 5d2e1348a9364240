package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	FieldService   = "service"
	FieldComponent = "component"

	// Search
	FieldFrom     = "from"
	FieldTo       = "to"
	FieldStrategy = "strategy"
	FieldResults  = "results"
	FieldRideID   = "ride_id"
)
