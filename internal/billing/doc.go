// Package billing implements credit pricing and the double-entry style
// ledger that charges and refunds users for generation tasks.
package billing
