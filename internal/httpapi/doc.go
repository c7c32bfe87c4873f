// Package httpapi wires the settings, data, sync, auth, and oauth
// components onto chi routes: panic recovery, request id, structured access
// logging, optional CORS and rate limiting, then bearer auth for every
// authenticated route. Handlers stay thin — decode, call the service layer,
// encode — so business logic lives in internal/settings, internal/data, and
// internal/sync instead of here.
package httpapi
