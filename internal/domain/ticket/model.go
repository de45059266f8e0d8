package ticket

// Ticket is an existing ticket as read back from the ticketing system,
// reduced to what deduplication and update decisions need.
type Ticket struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	URL         string `json:"url,omitempty"`
}
