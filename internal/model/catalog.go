package model

// InventoryItem is a piece of equipment that can be inspected.
type InventoryItem struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Model     string `json:"model"`
	Requested *User  `json:"requested,omitempty"`
}

// Label renders "Name (Model) Assigned: First Last" as shown in
// equipment pickers.
func (i InventoryItem) Label() string {
	label := i.Name
	if i.Model != "" {
		label += " (" + i.Model + ")"
	}
	if i.Requested != nil {
		label += " Assigned: " + i.Requested.DisplayName()
	}
	return label
}

// Service is an entry in the catalogue of requestable services.
type Service struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ServiceRequestDraft is the body of a new or edited service request.
type ServiceRequestDraft struct {
	ServiceID int64  `json:"service_id"`
	Reason    string `json:"reason"`
	Location  string `json:"location,omitempty"`
}
