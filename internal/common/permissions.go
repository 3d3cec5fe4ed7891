package common

// Permissions for files shiftcast writes.
const (
	// FilePermissionSecure is used for the config file and credential files.
	FilePermissionSecure = 0600

	// FilePermissionNormal is used for exported predictions.
	FilePermissionNormal = 0644

	// DirPermissionSecure is used for ~/.shiftcast.
	DirPermissionSecure = 0700
)
