package apis

const (
	// HTTP Response Fields
	ContentType = "Content-Type"

	// Self-defined Fields
	Tag = "tag"
)
