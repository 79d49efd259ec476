// Package content turns inbound chat content into a single text query.
package content

import (
	"strings"

	"bonfire-agent/internal/entity"
)

// Extract concatenates every text block of msg in order. Other block kinds
// are skipped; a message without text yields "".
func Extract(msg entity.InboundMessage) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		switch b := block.(type) {
		case entity.TextBlock:
			sb.WriteString(b.Text)
		case entity.EndSessionBlock, entity.OtherBlock:
		}
	}
	return sb.String()
}
