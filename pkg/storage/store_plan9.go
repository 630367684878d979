package storage

func isEphemeralError(error) bool {
	return false
}
