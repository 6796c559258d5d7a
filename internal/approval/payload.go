package approval

import "fmt"

// Kind tags the action variant an approval is gating.
type Kind string

const (
	KindSwap      Kind = "swap"
	KindTransfer  Kind = "transfer"
	KindWithdraw  Kind = "withdraw"
	KindDCACreate Kind = "dca-create"
	KindDCAStop   Kind = "dca-stop"
)

// Payload describes the action being approved. The coordinator never
// inspects it; it exists only for rendering and audit.
type Payload interface {
	Kind() Kind
	// Summary returns the human-readable lines describing the action.
	Summary() []string
}

// Swap gates a token swap.
type Swap struct {
	FromAmount string
	FromSymbol string
	ToAmount   string
	ToSymbol   string
	FromChain  string
	ToChain    string
}

func (s Swap) Kind() Kind { return KindSwap }

func (s Swap) Summary() []string {
	chainPart := ""
	if s.FromChain != "" && s.ToChain != "" {
		chainPart = fmt.Sprintf(" (%s -> %s)", s.FromChain, s.ToChain)
	}
	return []string{
		"Action: Swap",
		fmt.Sprintf("From: %s %s", s.FromAmount, s.FromSymbol),
		fmt.Sprintf("To: %s %s%s", s.ToAmount, s.ToSymbol, chainPart),
	}
}

// Transfer gates an in-network transfer to another account.
type Transfer struct {
	Amount    string
	Symbol    string
	ToAddress string
	Chain     string
}

func (t Transfer) Kind() Kind { return KindTransfer }

func (t Transfer) Summary() []string {
	lines := []string{
		"Action: Transfer",
		fmt.Sprintf("Amount: %s %s", t.Amount, t.Symbol),
		fmt.Sprintf("Recipient: %s", trimAddress(t.ToAddress)),
	}
	if t.Chain != "" {
		lines = append(lines, fmt.Sprintf("Chain: %s", t.Chain))
	}
	return lines
}

// Withdraw gates a withdrawal to an external address.
type Withdraw struct {
	Amount        string
	Symbol        string
	ToAddress     string
	Chain         string
	ReceiveAmount string
	FeeAmount     string
}

func (w Withdraw) Kind() Kind { return KindWithdraw }

func (w Withdraw) Summary() []string {
	lines := []string{
		"Action: Withdraw",
		fmt.Sprintf("Amount: %s %s", w.Amount, w.Symbol),
	}
	if w.ReceiveAmount != "" {
		lines = append(lines, fmt.Sprintf("Expected receive: %s %s", w.ReceiveAmount, w.Symbol))
	}
	if w.FeeAmount != "" {
		lines = append(lines, fmt.Sprintf("Estimated fee: %s %s", w.FeeAmount, w.Symbol))
	}
	lines = append(lines, fmt.Sprintf("Destination: %s", trimAddress(w.ToAddress)))
	if w.Chain != "" {
		lines = append(lines, fmt.Sprintf("Chain: %s", w.Chain))
	}
	return lines
}

// DCACreate gates creation of a recurring buy rule.
type DCACreate struct {
	FromAmount string
	FromSymbol string
	ToAmount   string
	ToSymbol   string
	FromChain  string
	ToChain    string
	Cron       string
}

func (d DCACreate) Kind() Kind { return KindDCACreate }

func (d DCACreate) Summary() []string {
	lines := []string{"Action: Create DCA Rule"}
	if d.FromAmount != "" && d.FromSymbol != "" {
		lines = append(lines, fmt.Sprintf("Spend: %s %s", d.FromAmount, d.FromSymbol))
	}
	if d.ToAmount != "" && d.ToSymbol != "" {
		chainPart := ""
		if d.FromChain != "" && d.ToChain != "" {
			chainPart = fmt.Sprintf(" (%s -> %s)", d.FromChain, d.ToChain)
		}
		lines = append(lines, fmt.Sprintf("Expected: %s %s%s", d.ToAmount, d.ToSymbol, chainPart))
	}
	if d.Cron != "" {
		lines = append(lines, fmt.Sprintf("Schedule (UTC): %s", d.Cron))
	}
	return lines
}

// DCAStop gates stopping an existing recurring rule.
type DCAStop struct {
	RuleID string
}

func (d DCAStop) Kind() Kind { return KindDCAStop }

func (d DCAStop) Summary() []string {
	lines := []string{"Action: Stop DCA Rule"}
	if d.RuleID != "" {
		lines = append(lines, fmt.Sprintf("Rule ID: %s", d.RuleID))
	}
	return lines
}

func trimAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
