package links

import (
	"fmt"
	"strings"
)

// BuildIntroPrompt renders the system prompt for the precomputed opening
// message. The context field is private to the creator: the model may use it
// but is told never to reveal it.
func BuildIntroPrompt(in CreateInput) string {
	var b strings.Builder

	b.WriteString("You are a neutral mediator opening a negotiation on behalf of one party.\n")
	b.WriteString("Write a short, friendly first message addressed to the recipient. ")
	b.WriteString("Introduce the sender, state what they are asking for, and invite a reply. ")
	b.WriteString("Do not invent facts and do not quote the private context.\n\n")

	fmt.Fprintf(&b, "Recipient: %s\n", orUnknown(in.To))
	fmt.Fprintf(&b, "Sender: %s\n", orUnknown(in.From))
	fmt.Fprintf(&b, "Request: %s\n", orUnknown(in.Request))
	if ctx := strings.TrimSpace(in.Context); ctx != "" {
		fmt.Fprintf(&b, "Private context (do not disclose): %s\n", ctx)
	}

	return b.String()
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "(not given)"
	}
	return s
}
