// internal/workers/visit-reminder/models.go
package visitreminder

// Output summarizes one reminder pass.
type Output struct {
	Due       int `json:"due"`
	Emailed   int `json:"emailed"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// Event is the SNS payload for one reminder.
type Event struct {
	PropertyID  string `json:"propertyId"`
	GroupName   string `json:"groupName"`
	Title       string `json:"title"`
	Address     string `json:"address"`
	URL         string `json:"url,omitempty"`
	NextVisitAt string `json:"nextVisitAt"`
	OwnerEmail  string `json:"ownerEmail"`
}

const (
	EventType = "visit.reminder"

	ChannelEmail = "email"
	ChannelSNS   = "sns"

	ResultSent   = "sent"
	ResultFailed = "failed"
)

const (
	subjectTemplate = "Visit reminder: {{title}}"
	bodyTemplate    = "Hello {{name}},\n\nYou have a visit to {{title}} ({{address}}) from your \"{{groupName}}\" search at {{visitAt}}.\n\n{{url}}\n"
)
