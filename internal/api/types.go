package api

import "time"

// Application is the wire representation of a registered application.
type Application struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Kind            string    `json:"kind"` // "packaged" or "exploded"
	Location        string    `json:"location"`
	DeployedAt      time.Time `json:"deployed_at"`
	DescriptorMtime time.Time `json:"descriptor_mtime"`
}

// ZombieEntry is the wire representation of one zombie registry entry.
type ZombieEntry struct {
	Location     string    `json:"location"`
	LastModified time.Time `json:"last_modified"`
}

// DeployRequest asks the daemon to deploy an artifact synchronously.
type DeployRequest struct {
	Location string `json:"location"`
}

// Event is one recorded deployment lifecycle transition.
type Event struct {
	ID         string    `json:"id"`
	AppName    string    `json:"app_name"`
	Type       string    `json:"type"` // e.g. "deploy_success", "undeploy_start"
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// APIResponse is a standard wrapper for API responses.
type APIResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
