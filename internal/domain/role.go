package domain

type Role string

const (
	// RoleDispatcher may start runs.
	RoleDispatcher Role = "dispatcher"
	RoleViewer     Role = "viewer"
)
