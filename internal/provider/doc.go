// Package provider defines the boundary to the external image generation
// service: the single-call Provider interface and the structured Error type
// whose kind tags drive retry classification throughout the engine.
package provider
