package definitions

// StatusDevice is the only enumeration status that marks a device as
// usable. Other statuses (unauthorized, offline, ...) indicate presence
// but the device cannot accept commands.
const StatusDevice = "device"

// CommandResult is the normalized outcome of a single adb invocation.
// Output carries trimmed stdout (possibly partial on failure), Error
// carries trimmed stderr or a classification message.
type CommandResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Device is one row of the enumeration output. The ID is a serial number
// or a host:port address and is unique within one enumeration snapshot.
type Device struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// DeviceInfo holds optional device properties. Each field stays empty if
// its property query failed; one failed query never blocks the others.
type DeviceInfo struct {
	Model          string `json:"model,omitempty"`
	AndroidVersion string `json:"android_version,omitempty"`
	Brand          string `json:"brand,omitempty"`
}

// UsableDevice is a LAN device whose MAC from the name mapping was seen
// in the current neighbor table. It only exists as a cross-reference
// result and is never persisted.
type UsableDevice struct {
	IP   string `json:"ip"`
	Name string `json:"name"`
	MAC  string `json:"mac"`
}

// InstallOutcome is the result of one install request. On total strategy
// exhaustion Error embeds the multi-line diagnosis report.
type InstallOutcome struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}
