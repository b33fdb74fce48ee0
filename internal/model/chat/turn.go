package chat

import "strings"

// Route names the capability that answered a turn.
type Route string

const (
	RouteNone         Route = "none"
	RouteConversation Route = "conversation"
	RouteMultimodal   Route = "multimodal"
)

// Image is an uploaded picture attached to a turn.
type Image struct {
	Data     []byte
	MIMEType string
}

// TurnInput carries optional text and an optional image.
type TurnInput struct {
	Text  string
	Image *Image
}

// HasText reports whether the input carries non-blank text.
func (in TurnInput) HasText() bool {
	return strings.TrimSpace(in.Text) != ""
}

// HasImage reports whether the input carries image bytes.
func (in TurnInput) HasImage() bool {
	return in.Image != nil && len(in.Image.Data) > 0
}

// Empty reports whether neither text nor image is present.
func (in TurnInput) Empty() bool {
	return !in.HasText() && !in.HasImage()
}

// TurnOutput is the normalised result of one turn.
type TurnOutput struct {
	Text       string
	Route      Route
	AudioID    string
	AudioError string
}
