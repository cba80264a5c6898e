// Package flow drives the sticker conversation: pick a pack, a character and a
// style, type the overlay text, receive the rendered image.
package flow

// Step tags the position of a session in the conversation.
type Step string

const (
	StepSelectPack      Step = "select_pack"
	StepSelectCharacter Step = "select_character"
	StepSelectStyle     Step = "select_style"
	StepInputText       Step = "input_text"
)

// Valid reports whether s is one of the four known steps.
func (s Step) Valid() bool {
	switch s {
	case StepSelectPack, StepSelectCharacter, StepSelectStyle, StepInputText:
		return true
	}
	return false
}

// Session is the in-progress selection of one conversation identity.
// Fields are populated in step order; later fields are empty until reached.
type Session struct {
	Step      Step   `json:"step"`
	Pack      string `json:"pack,omitempty"`
	Character string `json:"character,omitempty"`
	StyleID   string `json:"style_id,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Delivery selects how a finished sticker reaches the chat.
type Delivery string

const (
	// DeliveryUpload fetches the image and uploads the bytes.
	DeliveryUpload Delivery = "upload"
	// DeliveryURL hands the compositing URL to the chat without fetching.
	DeliveryURL Delivery = "url"
)

// Outcome names how a message was resolved. Terminal outcomes end the session.
type Outcome string

const (
	OutcomeAdvanced    Outcome = "ok"
	OutcomeReprompt    Outcome = "reprompt"
	OutcomeCompleted   Outcome = "completed"
	OutcomeFetchFailed Outcome = "fetch_failed"
	OutcomeErrored     Outcome = "errored"
	OutcomeCancelled   Outcome = "cancelled"
)

// Reply is what the conversation answers with.
type Reply struct {
	Text string
	// Choices lists the values accepted at the next step, in display order.
	Choices []string
	// Image holds the rendered sticker in upload delivery mode.
	Image []byte
	// ImageURL holds the compositing URL in url delivery mode.
	ImageURL string
	// Done is set when the session ended.
	Done bool
}
