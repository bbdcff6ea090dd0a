// Package security derives the engine's security posture report from its
// configuration.
package security
