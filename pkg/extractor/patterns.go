package extractor

import (
	"regexp"

	"github.com/ArionMiles/smsledger/pkg/api"
)

var (
	amountPattern    = regexp.MustCompile(`(?i)(?:\bRs\.?|\bINR|₹)\s*([\d,]+(?:\.\d{1,2})?)`)
	amountAltPattern = regexp.MustCompile(`(?i)\b(?:amount|amt|rs|inr|rupees?)[:\s]*([\d,]+(?:\.\d{1,2})?)`)

	last4Pattern   = regexp.MustCompile(`(?i)(?:a/c|\bac|account|card|xx|ending)\s*(?:no\.?|number)?[:\s]*[x*]*(\d{4})`)
	refPattern     = regexp.MustCompile(`(?i)\b(?:ref\.?\s*(?:no\.?|id)?|txn\s*(?:id|no)?|utr|imps\s*ref|neft\s*ref)[:\s]*([a-z0-9]*\d[a-z0-9]*)`)
	balancePattern = regexp.MustCompile(`(?i)\b(?:bal(?:ance)?|avl\.?\s*bal|available)[:\s]*(?:Rs\.?|INR|₹)?\s*([\d,]+(?:\.\d{1,2})?)`)

	upiHandlePattern = regexp.MustCompile(`([a-zA-Z0-9._-]+@[a-zA-Z]+)`)
	merchantPattern  = regexp.MustCompile(`(?i)(?:\b(?:to|from|at|via|for)|@)\s+([a-z0-9\s\-_.@]+?)\s+(?:on|ref|txn|upi|via|rs|inr|₹|\d)`)
	vpaPattern       = regexp.MustCompile(`(?i)\bVPA\s+([a-z0-9._@-]+)`)

	numericDatePattern = regexp.MustCompile(`\b(\d{1,2})[-/\\](\d{1,2})[-/\\](\d{4}|\d{2})\b`)
	namedDatePattern   = regexp.MustCompile(`(?i)\b(\d{1,2})[-/ ]?(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*[-/ ,]*(\d{4}|\d{2})\b`)
	timePattern        = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})(?::(\d{2}))?(?:\s*([ap])\.?m\b)?`)
)

// Direction lexicons. Debit is checked before credit, so a message carrying
// both verbs is a debit.
var directionRules = []struct {
	direction api.Direction
	pattern   *regexp.Regexp
}{
	{api.DirectionDebit, regexp.MustCompile(`(?i)\b(?:debited|spent|paid|withdrawn|purchased?|sent|deducted|transferred\s+out)\b`)},
	{api.DirectionCredit, regexp.MustCompile(`(?i)\b(?:credited|received|deposited|refund(?:ed)?|cashback|reversed|transferred\s+in)\b`)},
}

// Method precedence. First match wins; the order is load-bearing: a message
// mentioning both UPI and ATM is UPI.
var methodRules = []struct {
	method  api.Method
	pattern *regexp.Regexp
}{
	{api.MethodUPI, regexp.MustCompile(`(?i)(?:upi|bhim|phonepe|gpay|paytm|googlepay)`)},
	{api.MethodATM, regexp.MustCompile(`(?i)(?:\batm\b|cash\s+withdrawal|withdrawn\s+at)`)},
	{api.MethodIMPS, regexp.MustCompile(`(?i)\bimps`)},
	{api.MethodNEFT, regexp.MustCompile(`(?i)\bneft`)},
	{api.MethodRTGS, regexp.MustCompile(`(?i)\brtgs`)},
	{api.MethodCreditCard, regexp.MustCompile(`(?i)(?:credit\s*card|\bcc\s+|visa\s+credit|master\s*card\s+credit)`)},
	{api.MethodDebitCard, regexp.MustCompile(`(?i)(?:debit\s*card|\bdc\s+|atm\s*card|visa\s+debit|maestro|rupay)`)},
	{api.MethodWallet, regexp.MustCompile(`(?i)(?:wallet|mobikwik|freecharge)`)},
	{api.MethodNetbanking, regexp.MustCompile(`(?i)(?:netbanking|net\s+banking|online\s+banking|ibanking)`)},
}

// financialIndicators are the five independent signals of a transaction message.
var financialIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:Rs\.?|INR|₹)\s*[\d,]+`),
	regexp.MustCompile(`(?i)(?:credited|debited|spent|paid|received|withdrawn)`),
	regexp.MustCompile(`(?i)(?:upi|imps|neft|rtgs|debit card|credit card|\batm\b)`),
	regexp.MustCompile(`(?i)(?:a/c|account|card).{0,10}\d{4}`),
	regexp.MustCompile(`(?i)(?:bal(?:ance)?|avl\.?\s*bal)`),
}
