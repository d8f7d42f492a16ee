// Package importer converts bank statement exports into transaction drafts.
package importer

import (
	"io"
	"math"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"fintrack/internal/core"
)

// Banks emit OFX with sloppy SGML: leading blank lines, mixed-case severity
// values and opening tags missing their closing bracket. ofxgo rejects all
// three, so normalize before parsing.
var (
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagPattern  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

func normalizeOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagPattern.ReplaceAllString(content, "$1>")
}

// ParseOFX reads an OFX or QFX document and returns one transaction draft per
// statement entry, across every bank and credit card statement in the file.
// Debits become expenses with positive amounts, credits become income. The
// drafts carry no category; the caller assigns one before importing.
func ParseOFX(r io.Reader) ([]core.Transaction, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, core.ValidationFailed("Unable to read OFX document")
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(normalizeOFX(string(content))))
	if err != nil {
		return nil, core.ValidationFailed("Invalid OFX document: " + err.Error())
	}

	var drafts []core.Transaction
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			drafts = append(drafts, statementDrafts(stmt.BankTranList, stmt.CurDef.String())...)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			drafts = append(drafts, statementDrafts(stmt.BankTranList, stmt.CurDef.String())...)
		}
	}
	return drafts, nil
}

func statementDrafts(list *ofxgo.TransactionList, currency string) []core.Transaction {
	if list == nil {
		return nil
	}
	if !core.Currency(currency).Valid() {
		currency = string(core.DefaultCurrency)
	}

	var drafts []core.Transaction
	for _, entry := range list.Transactions {
		amount, _ := entry.TrnAmt.Float64()
		cents := int64(math.Round(amount * 100))
		if cents == 0 {
			continue
		}

		draft := core.Transaction{
			Type:        core.TransactionIncome,
			Amount:      core.Money{Cents: cents},
			Currency:    core.Currency(currency),
			Description: entryDescription(entry),
			Date:        entry.DtPosted.Time.UTC(),
			Status:      core.TransactionCompleted,
		}
		if cents < 0 {
			draft.Type = core.TransactionExpense
			draft.Amount = core.Money{Cents: -cents}
		}
		drafts = append(drafts, draft)
	}
	return drafts
}

func entryDescription(entry ofxgo.Transaction) string {
	if entry.Payee != nil && entry.Payee.Name != "" {
		return strings.TrimSpace(string(entry.Payee.Name))
	}
	name := strings.TrimSpace(string(entry.Name))
	if memo := strings.TrimSpace(string(entry.Memo)); memo != "" && isGenericName(name) {
		return memo
	}
	if name == "" {
		return "Imported transaction"
	}
	return name
}

// Some banks put the useful merchant text in MEMO and leave NAME as a
// transaction-type placeholder.
func isGenericName(name string) bool {
	switch strings.ToUpper(name) {
	case "", "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
