// Package gemini adapts Google's Gemini API to the provider.Provider
// interface. It owns the translation from API failures to classified
// provider errors; retry decisions belong to the callers.
package gemini
