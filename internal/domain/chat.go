package domain

// ChatMessage is one LAN chat line as carried on the wire and to the UI.
type ChatMessage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

// ChatPayload is what the UI submits when sending a message.
type ChatPayload struct {
	Name string `json:"name"`
	Text string `json:"text"`
}
