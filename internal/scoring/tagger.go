package scoring

import (
	"math/bits"
	"time"

	"github.com/blinkcredit/blink/internal/models"
)

// payrollWeights maps the popcount of the payroll rule mask to a
// confidence weight.
var payrollWeights = [4]float64{0, 0.2, 0.5, 1.0}

// tagTransactions classifies every transaction. The three payroll rules
// build a bitmask whose popcount sets the confidence weight, loan
// payments and overdraft fees get boolean flags, and caller overrides
// are applied last. Payroll applies to inflows only, loan payments to
// outflows only.
func tagTransactions(txns []models.Transaction, asOf time.Time, overrides map[string]models.TagOverride) []models.TaggedTransaction {
	tagged := make([]models.TaggedTransaction, len(txns))
	for i, tx := range txns {
		t := models.TaggedTransaction{Transaction: tx}

		if t.IsInflow() {
			if matchesPayrollCategory(tx.Category, tx.CategoryID) {
				t.PayrollMask |= models.PayrollRuleCategory
			}
			if matchesPayrollKeyword(tx.MerchantName, tx.Description) {
				t.PayrollMask |= models.PayrollRuleKeyword
			}
		}
		if t.IsOutflow() && (matchesLoanCategory(tx.Category, tx.CategoryID) || matchesLoanKeyword(tx.Description)) {
			t.IsLoanPayment = true
		}
		if matchesOverdraftFee(tx.CategoryID, tx.Description) {
			t.IsOverdraftFee = true
		}

		tagged[i] = t
	}

	detectCadence(tagged, asOf)

	for i := range tagged {
		t := &tagged[i]
		t.PayrollWeight = payrollWeights[bits.OnesCount8(t.PayrollMask)]
		t.IsPayroll = t.PayrollWeight > 0
	}

	applyOverrides(tagged, overrides)

	return tagged
}

// applyOverrides forces reviewer decisions onto individual transactions.
// A forced payroll keeps its rule mask but scores full confidence; a
// cleared payroll drops mask and weight entirely. Sign discipline still
// holds: payroll only lands on inflows, loan payments only on outflows.
// Ids absent from the input are ignored.
func applyOverrides(tagged []models.TaggedTransaction, overrides map[string]models.TagOverride) {
	if len(overrides) == 0 {
		return
	}
	for i := range tagged {
		o, ok := overrides[tagged[i].ID]
		if !ok {
			continue
		}
		t := &tagged[i]

		if o.IsPayroll != nil {
			if *o.IsPayroll && t.IsInflow() {
				t.IsPayroll = true
				t.PayrollWeight = 1.0
			} else if !*o.IsPayroll {
				t.IsPayroll = false
				t.PayrollWeight = 0
				t.PayrollMask = 0
			}
		}
		if o.IsLoanPayment != nil {
			if *o.IsLoanPayment && t.IsOutflow() {
				t.IsLoanPayment = true
			} else if !*o.IsLoanPayment {
				t.IsLoanPayment = false
			}
		}
	}
}
