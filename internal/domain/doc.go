// Package domain contains the core entities of the generation engine:
// tasks, ledger entries and users, together with their validation rules.
package domain
