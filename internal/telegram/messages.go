package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/tradewarden/internal/approval"
)

// RequestText renders the approval prompt for a gated action.
func RequestText(payload approval.Payload, timeout time.Duration) string {
	lines := []string{"Transaction approval required", ""}
	lines = append(lines, summaryLines(payload)...)
	lines = append(lines,
		"",
		"If you confirm, the transaction will be submitted.",
		"If you reject, the transaction will be cancelled.",
		"",
		fmt.Sprintf("Timeout: %d seconds.", int(timeout.Seconds())),
	)
	return strings.Join(lines, "\n")
}

// FinalText renders the prompt's replacement text after an explicit decision.
func FinalText(approved bool, payload approval.Payload) string {
	title := "Transaction rejected"
	detail := "You rejected this transaction. It will not be processed."
	if approved {
		title = "Transaction approved"
		detail = "Your transaction has been confirmed and is being processed."
	}

	lines := []string{title, ""}
	lines = append(lines, summaryLines(payload)...)
	lines = append(lines, "", detail)
	return strings.Join(lines, "\n")
}

func summaryLines(payload approval.Payload) []string {
	if payload == nil {
		return nil
	}
	return payload.Summary()
}
