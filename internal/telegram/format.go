package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/tap2go/tap2go/internal/ledger"
	"github.com/tap2go/tap2go/internal/money"
)

const dateLayout = "Mon, 2 Jan 2006, 3:04 pm"

func formatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}

func balanceText(minor int64) string {
	return fmt.Sprintf("Your current balance is: %s<b>%s</b>", money.Symbol, money.Format(minor))
}

// transactionsText lists txs in the order given, numbered from 1.
func transactionsText(txs []ledger.Transaction, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("Your Transactions:\n\n")
	for i, t := range txs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. Date: <b>%s</b>, Amount: %s<b>%s</b>",
			i+1, formatDate(t.CreatedAt, loc), money.Symbol, money.Format(t.Amount))
	}
	return b.String()
}
