package domain

// StartupInfo carries the window and console parameters for the created
// process, passed through to the launch executor untouched.
type StartupInfo struct {
	Desktop       string `json:"desktop,omitempty"`
	Title         string `json:"title,omitempty"`
	X             uint32 `json:"x"`
	Y             uint32 `json:"y"`
	XSize         uint32 `json:"x_size"`
	YSize         uint32 `json:"y_size"`
	XCountChars   uint32 `json:"x_count_chars"`
	YCountChars   uint32 `json:"y_count_chars"`
	FillAttribute uint32 `json:"fill_attribute"`
	Flags         uint32 `json:"flags"`
	ShowWindow    uint16 `json:"show_window"`
	ParentPID     uint32 `json:"parent_pid,omitempty"`
}

// LaunchRequest asks the service to start a program with elevated rights.
// ExecutablePath may be omitted when CommandLine carries the program as its
// first token.
type LaunchRequest struct {
	ExecutablePath   string       `json:"executable_path,omitempty"`
	CommandLine      []string     `json:"command_line,omitempty"`
	WorkingDirectory string       `json:"working_directory,omitempty"`
	CreationFlags    uint32       `json:"creation_flags"`
	StartupInfo      *StartupInfo `json:"startup_info,omitempty"`
	Consent          Consent      `json:"consent,omitzero"`
}

// LaunchResponse identifies the created process.
type LaunchResponse struct {
	ProcessID uint32 `json:"process_id"`
	ThreadID  uint32 `json:"thread_id"`
}
