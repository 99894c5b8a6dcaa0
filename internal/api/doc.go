// Package api contains the HTTP handlers, request/response models and
// error mapping for the public and operator endpoints. Handlers stay thin;
// behavior lives in the services they call.
package api
