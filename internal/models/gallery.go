package models

// GalleryElement is one card in a chat gallery.
type GalleryElement struct {
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
	ItemURL  string `json:"item_url"`
}

// Payload holds the gallery cards.
type Payload struct {
	Elements []GalleryElement `json:"elements"`
}

// Attachment wraps a payload for a chat message.
type Attachment struct {
	Payload Payload `json:"payload"`
}

// Message is a single chat message carrying an attachment.
type Message struct {
	Attachment Attachment `json:"attachment"`
}

// Gallery is the chat response envelope: {messages: [{attachment: {payload: {elements}}}]}.
type Gallery struct {
	Messages []Message `json:"messages"`
}

// NewGallery wraps elements in the single-message envelope.
// A nil slice is normalized so it encodes as an empty JSON array.
func NewGallery(elements []GalleryElement) *Gallery {
	if elements == nil {
		elements = []GalleryElement{}
	}
	return &Gallery{
		Messages: []Message{{Attachment: Attachment{Payload: Payload{Elements: elements}}}},
	}
}

// Elements returns the cards of the first message, or nil for an empty gallery.
func (g *Gallery) Elements() []GalleryElement {
	if g == nil || len(g.Messages) == 0 {
		return nil
	}
	return g.Messages[0].Attachment.Payload.Elements
}
