package scoring

import (
	"regexp"
	"strings"
)

// Keyword rules are whole-word, case-insensitive matches against merchant
// names and raw descriptions. Category tokens compare by literal element
// equality against the provider's category path; category IDs compare by
// string prefix.
var (
	payrollKeywordRe = regexp.MustCompile(`(?i)\b(ADP|PAYROLL CORP|INTUIT PAYROLL|PAYROLL|PAYCHEX|GUSTO|TRINET|BAMBOOHR)\b`)
	loanKeywordRe    = regexp.MustCompile(`(?i)\b(FINANCE|LOAN|CREDIT|CAPITAL ONE|DISCOVER|CHASE CARD|AMEX)\b`)
	paymentRe        = regexp.MustCompile(`(?i)\bPAYMENT\b`)
	p2pRe            = regexp.MustCompile(`(?i)\b(ZELLE|VENMO|CASH APP|PAYPAL)\b`)
	overdraftFeeRe   = regexp.MustCompile(`(?i)\b(OVERDRAFT|OD FEE|RET ITEM FEE|NSF FEE)\b`)
)

const (
	payrollCategoryToken    = "Payroll"
	payrollCategoryIDPrefix = "21006"
	loanCategoryIDPrefix    = "23005"
	overdraftFeeCategoryID  = "22001000"
)

var loanCategoryTokens = []string{"Loan Payment", "Credit Card Payment"}

// categoryContains reports whether any element of the category path equals
// the token exactly.
func categoryContains(path []string, token string) bool {
	for _, p := range path {
		if p == token {
			return true
		}
	}
	return false
}

// categoryContainsAny reports whether any element equals any of the tokens.
func categoryContainsAny(path []string, tokens []string) bool {
	for _, t := range tokens {
		if categoryContains(path, t) {
			return true
		}
	}
	return false
}

// matchesPayrollCategory covers both the category path and the numeric
// category ID family for payroll.
func matchesPayrollCategory(path []string, categoryID string) bool {
	if categoryContains(path, payrollCategoryToken) {
		return true
	}
	return categoryID != "" && strings.HasPrefix(categoryID, payrollCategoryIDPrefix)
}

// matchesPayrollKeyword checks merchant name and raw description against
// the payroll provider vocabulary.
func matchesPayrollKeyword(merchant, description string) bool {
	return payrollKeywordRe.MatchString(merchant) || payrollKeywordRe.MatchString(description)
}

// matchesLoanCategory covers the loan and credit-card payment category
// families.
func matchesLoanCategory(path []string, categoryID string) bool {
	if categoryContainsAny(path, loanCategoryTokens) {
		return true
	}
	return categoryID != "" && strings.HasPrefix(categoryID, loanCategoryIDPrefix)
}

// matchesLoanKeyword checks the description against lender names, or for
// the word PAYMENT without a peer-to-peer service name. P2P transfers say
// "payment" without being debt service.
func matchesLoanKeyword(description string) bool {
	if loanKeywordRe.MatchString(description) {
		return true
	}
	return paymentRe.MatchString(description) && !p2pRe.MatchString(description)
}

// matchesOverdraftFee covers the provider's overdraft fee category ID and
// the fee wording banks use on raw descriptions.
func matchesOverdraftFee(categoryID, description string) bool {
	if categoryID == overdraftFeeCategoryID {
		return true
	}
	return overdraftFeeRe.MatchString(description)
}
