package domain

// Project is the container issues are imported into.
type Project struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// User is a record-store account referenced by login in import columns.
type User struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Anonymous bool   `json:"anonymous"`
}

// Version is a project milestone referenced by name.
type Version struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Shared    bool   `json:"shared"`
}

// Category is a per-project issue category referenced by name.
type Category struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
}

// Tracker classifies issues (bug, feature, ...).
type Tracker struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Status is a workflow state. Closed statuses gate the update path.
type Status struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

// Priority is an enumerated issue priority.
type Priority struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
